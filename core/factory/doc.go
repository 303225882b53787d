// Package factory provides a small generic registry used to instantiate
// pluggable modules from configuration. A module is defined by a type string
// and a map of raw settings; factories decode the settings into typed structs
// and return the concrete implementation.
//
// The scheduler uses it for truck/dock selection policies and metrics sinks:
//
//	reg := factory.NewRegistry[Selector]()
//	reg.Register("random", func(conf map[string]any) (Selector, error) {
//	    var c struct{ Seed int64 `json:"seed"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return NewRandomSelector(c.Seed), nil
//	})
//	sel, err := reg.Create(factory.ModuleConfig{Type: "random", Conf: map[string]any{"seed": 7}})
package factory
