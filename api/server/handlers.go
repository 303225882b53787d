package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/kilianp07/dockyard/core/lifecycle"
	"github.com/kilianp07/dockyard/core/model"
)

type bookRequest struct {
	TruckID       string    `json:"truckId"`
	Supplier      string    `json:"supplier"`
	RequestedTime time.Time `json:"requestedTime"`
	Type          string    `json:"type"`
}

type truckRequest struct {
	TruckID       string `json:"truckId"`
	AppointmentID string `json:"appointmentId"`
}

type assignRequest struct {
	TruckID       string `json:"truckId"`
	DockID        string `json:"dockId"`
	AppointmentID string `json:"appointmentId"`
}

type statusRequest struct {
	AppointmentID string `json:"appointmentId"`
	Status        string `json:"status"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func parse(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidRequest, err)
	}
	return nil
}

func required(fields map[string]string) error {
	var missing []string
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: missing %s", model.ErrInvalidRequest, strings.Join(missing, ", "))
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	if s.health != nil {
		if err := s.health(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy", "error": err.Error()})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleToken(c *fiber.Ctx) error {
	var req loginRequest
	if err := parse(c, &req); err != nil {
		return writeError(c, err)
	}
	tok, op, err := s.issuer.Login(req.Username, req.Password)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"token": tok, "role": op.Role})
}

func (s *Server) handleBook(c *fiber.Ctx) error {
	var req bookRequest
	if err := parse(c, &req); err != nil {
		return writeError(c, err)
	}
	appt, _, err := s.d.Book(c.UserContext(), lifecycle.BookRequest{
		TruckID:       req.TruckID,
		Supplier:      req.Supplier,
		RequestedTime: req.RequestedTime,
		Type:          model.AppointmentType(req.Type),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(appt)
}

func (s *Server) handleArrive(c *fiber.Ctx) error {
	var req truckRequest
	if err := parse(c, &req); err != nil {
		return writeError(c, err)
	}
	if err := required(map[string]string{"truckId": req.TruckID, "appointmentId": req.AppointmentID}); err != nil {
		return writeError(c, err)
	}
	appt, err := s.d.Arrive(c.UserContext(), req.TruckID, req.AppointmentID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(appt)
}

func (s *Server) handleDepart(c *fiber.Ctx) error {
	var req truckRequest
	if err := parse(c, &req); err != nil {
		return writeError(c, err)
	}
	if err := required(map[string]string{"truckId": req.TruckID, "appointmentId": req.AppointmentID}); err != nil {
		return writeError(c, err)
	}
	appt, err := s.d.Depart(c.UserContext(), req.TruckID, req.AppointmentID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(appt)
}

func (s *Server) handleAssign(c *fiber.Ctx) error {
	var req assignRequest
	if err := parse(c, &req); err != nil {
		return writeError(c, err)
	}
	if err := required(map[string]string{
		"truckId": req.TruckID, "dockId": req.DockID, "appointmentId": req.AppointmentID,
	}); err != nil {
		return writeError(c, err)
	}
	rec, err := s.d.Assign(c.UserContext(), req.TruckID, req.DockID, req.AppointmentID)
	if err != nil {
		return writeError(c, err)
	}
	if user, ok := c.Locals(localUser).(string); ok {
		s.log.Infow("manual assignment", map[string]any{"user": user, "dock": rec.DockID, "truck": rec.TruckID})
	}
	return c.JSON(rec)
}

func (s *Server) handleUpdateStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := parse(c, &req); err != nil {
		return writeError(c, err)
	}
	if err := required(map[string]string{"appointmentId": req.AppointmentID, "status": req.Status}); err != nil {
		return writeError(c, err)
	}
	st, err := model.ParseAppointmentStatus(req.Status)
	if err != nil {
		return writeError(c, err)
	}
	appt, err := s.d.UpdateStatus(c.UserContext(), req.AppointmentID, st)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(appt)
}

func (s *Server) handleForceComplete(c *fiber.Ctx) error {
	var req struct {
		AppointmentID string `json:"appointmentId"`
	}
	if err := parse(c, &req); err != nil {
		return writeError(c, err)
	}
	if err := required(map[string]string{"appointmentId": req.AppointmentID}); err != nil {
		return writeError(c, err)
	}
	appt, err := s.d.ForceComplete(c.UserContext(), req.AppointmentID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(appt)
}

func (s *Server) handleDocks(c *fiber.Ctx) error {
	docks, err := s.d.Docks(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(docks)
}

func (s *Server) handleQueue(c *fiber.Ctx) error {
	q, err := s.d.TruckQueue(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(q)
}

func (s *Server) handleAppointments(c *fiber.Ctx) error {
	appts, err := s.d.Appointments(c.UserContext(), c.Query("truckId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(appts)
}

func (s *Server) handleRecent(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return writeError(c, fmt.Errorf("%w: limit must not be negative", model.ErrInvalidRequest))
	}
	recs, err := s.d.RecentAssignments(c.UserContext(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(recs)
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	sum, err := s.d.Stats(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(sum)
}

// handleWS sends a dock snapshot, then keeps the connection registered on the
// hub until the client goes away.
func (s *Server) handleWS(conn *websocket.Conn) {
	cl := s.hub.add(conn)
	defer s.hub.remove(conn)

	if docks, err := s.d.Docks(context.Background()); err == nil {
		if b, err := json.Marshal(fiber.Map{"kind": "snapshot", "docks": docks}); err == nil {
			_ = cl.write(websocket.TextMessage, b)
		}
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(s.cfg.WSPing)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if err := cl.write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
