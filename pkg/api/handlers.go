package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/langschool/backoffice/pkg/enrollment"
	"github.com/langschool/backoffice/pkg/guard"
	"github.com/langschool/backoffice/pkg/models"
)

// Amount accepts a JSON number or string. Blank, unparsable and
// non-positive values decode to 0.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}

	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	*a = Amount(models.ParseAmount(s))
	return nil
}

type paymentFields struct {
	Amount Amount `json:"amount"`
	Method string `json:"payment_method"`
	Status string `json:"payment_status"`
}

func (p paymentFields) resolve() (float64, models.PaymentMethod, models.PaymentStatus, error) {
	method, err := ParsePaymentMethod(p.Method)
	if err != nil {
		return 0, "", "", err
	}
	status, err := ParsePaymentStatus(p.Status)
	if err != nil {
		return 0, "", "", err
	}
	return float64(p.Amount), method, status, nil
}

type registrationRequest struct {
	StudentID int64  `json:"membership_id" validate:"required,gt=0"`
	ClassID   int64  `json:"class_id" validate:"required,gt=0"`
	Amount    Amount `json:"amount"`
	Method    string `json:"payment_method"`
	Status    string `json:"payment_status"`
}

func (r registrationRequest) payment() paymentFields {
	return paymentFields{Amount: r.Amount, Method: r.Method, Status: r.Status}
}

type registrationResponse struct {
	models.RegistrationDetail
	PaymentMethodLabel string `json:"payment_method_label,omitempty"`
	PaymentStatusLabel string `json:"payment_status_label,omitempty"`
}

func newRegistrationResponse(d models.RegistrationDetail) registrationResponse {
	r := registrationResponse{RegistrationDetail: d}
	if d.Payment != nil {
		r.PaymentMethodLabel = PaymentMethodLabel(d.Payment.Method)
		r.PaymentStatusLabel = PaymentStatusLabel(d.Payment.Status)
	}
	return r
}

func bindValid(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return c.Validate(req)
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func queryInt(c echo.Context, name string) (int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return n, nil
}

func (s *server) createRegistration(c echo.Context) error {
	var req registrationRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	amount, method, status, err := req.payment().resolve()
	if err != nil {
		return err
	}

	var intent *enrollment.PaymentIntent
	if amount > 0 {
		intent = &enrollment.PaymentIntent{Amount: amount, Method: method, Status: status}
	}

	id, err := s.svc.Enrollments.CreateRegistration(c.Request().Context(), req.StudentID, req.ClassID, intent)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]int64{"registration_id": id})
}

func (s *server) updateRegistration(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req registrationRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	amount, method, status, err := req.payment().resolve()
	if err != nil {
		return err
	}

	update := enrollment.PaymentUpdate{Amount: amount, Method: method, Status: status}
	if err := s.svc.Enrollments.UpdateRegistration(c.Request().Context(), id, req.StudentID, req.ClassID, update); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *server) deleteRegistration(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := s.svc.Enrollments.DeleteRegistration(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *server) getRegistration(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	detail, err := s.svc.Enrollments.GetRegistration(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newRegistrationResponse(detail))
}

func (s *server) listRegistrations(c echo.Context) error {
	classID, err := queryInt(c, "class_id")
	if err != nil {
		return err
	}
	studentID, err := queryInt(c, "student_id")
	if err != nil {
		return err
	}
	status, err := ParsePaymentStatus(c.QueryParam("payment_status"))
	if err != nil {
		return err
	}

	details, err := s.svc.Enrollments.ListRegistrations(c.Request().Context(), enrollment.Filter{
		ClassID:       classID,
		StudentID:     studentID,
		PaymentStatus: status,
	})
	if err != nil {
		return err
	}

	out := make([]registrationResponse, 0, len(details))
	for _, d := range details {
		out = append(out, newRegistrationResponse(d))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *server) attachPayment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req paymentFields
	if err := c.Bind(&req); err != nil {
		return err
	}
	amount, method, status, err := req.resolve()
	if err != nil {
		return err
	}

	paymentID, err := s.svc.Enrollments.AttachPayment(c.Request().Context(), id, enrollment.PaymentIntent{
		Amount: amount,
		Method: method,
		Status: status,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]int64{"payment_id": paymentID})
}

func (s *server) classAvailability(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	availability, err := s.svc.Enrollments.GetClassAvailability(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, availability)
}

func (s *server) canDelete(kind guard.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return err
		}
		decision, err := s.svc.Guard.CanDelete(c.Request().Context(), kind, id)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, decision)
	}
}

func (s *server) deleteEntity(kind guard.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return err
		}
		decision, err := s.svc.Guard.DeleteIfAllowed(c.Request().Context(), kind, id)
		if err != nil {
			if !decision.Allowed && decision.Reason != "" {
				s.logger.Info("delete refused",
					"kind", string(kind),
					"id", id,
					"dependents", decision.Dependents,
				)
			}
			return err
		}
		return c.JSON(http.StatusOK, decision)
	}
}
