// Package api exposes the back office over a JSON HTTP API.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/langschool/backoffice/pkg/catalog"
	"github.com/langschool/backoffice/pkg/config"
	"github.com/langschool/backoffice/pkg/enrollment"
	"github.com/langschool/backoffice/pkg/guard"
	"github.com/langschool/backoffice/pkg/models"
	"github.com/langschool/backoffice/pkg/runtime"
	"github.com/langschool/backoffice/pkg/stats"
)

// Enrollments is the registration lifecycle used by the handlers.
type Enrollments interface {
	CreateRegistration(ctx context.Context, studentID, classID int64, intent *enrollment.PaymentIntent) (int64, error)
	UpdateRegistration(ctx context.Context, registrationID, studentID, classID int64, payment enrollment.PaymentUpdate) error
	DeleteRegistration(ctx context.Context, registrationID int64) error
	GetClassAvailability(ctx context.Context, classID int64) (enrollment.Availability, error)
	AttachPayment(ctx context.Context, registrationID int64, intent enrollment.PaymentIntent) (int64, error)
	GetRegistration(ctx context.Context, registrationID int64) (models.RegistrationDetail, error)
	ListRegistrations(ctx context.Context, filter enrollment.Filter) ([]models.RegistrationDetail, error)
}

// Deleter performs guarded deletes.
type Deleter interface {
	CanDelete(ctx context.Context, kind guard.Kind, id int64) (guard.Decision, error)
	DeleteIfAllowed(ctx context.Context, kind guard.Kind, id int64) (guard.Decision, error)
}

// Reporter serves the aggregate projections.
type Reporter interface {
	Dashboard(ctx context.Context) (stats.Dashboard, error)
	Live(ctx context.Context) (stats.Live, error)
	Payments(ctx context.Context) (stats.PaymentSummary, error)
	RecentRegistrations(ctx context.Context, limit int) ([]stats.RecentRegistration, error)
	UpcomingClasses(ctx context.Context, limit int) ([]stats.UpcomingClass, error)
}

// Catalog edits and reads catalog rows.
type Catalog interface {
	CreateProfessor(ctx context.Context, in catalog.ProfessorInput) (int64, error)
	UpdateProfessor(ctx context.Context, id int64, in catalog.ProfessorInput) error
	GetProfessor(ctx context.Context, id int64) (models.Professor, error)
	CreateStudent(ctx context.Context, in catalog.StudentInput) (int64, error)
	UpdateStudent(ctx context.Context, id int64, in catalog.StudentInput) error
	GetStudent(ctx context.Context, id int64) (models.Student, error)
	SearchStudents(ctx context.Context, q string, limit int) ([]models.Student, error)
	CreateCourse(ctx context.Context, in catalog.CourseInput) (int64, error)
	UpdateCourse(ctx context.Context, id int64, in catalog.CourseInput) error
	GetCourse(ctx context.Context, id int64) (models.Course, error)
	CreateClass(ctx context.Context, in catalog.ClassInput) (int64, error)
	UpdateClass(ctx context.Context, id int64, in catalog.ClassInput) error
	GetClass(ctx context.Context, id int64) (models.Class, error)
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles the dependencies of the API.
type Services struct {
	Enrollments Enrollments
	Guard       Deleter
	Stats       Reporter
	Catalog     Catalog
	Health      Pinger
}

// Options tune the server.
type Options struct {
	Admin  config.Admin
	Logger *slog.Logger
}

type server struct {
	svc    Services
	logger *slog.Logger
}

// requestValidator plugs go-playground/validator into echo's Validate.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return &runtime.ValidationError{Field: fieldErrs[0].Field(), Message: "failed on the '" + fieldErrs[0].Tag() + "' rule"}
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// New builds the echo instance with every route registered.
func New(svc Services, opts Options) *echo.Echo {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: catalog.NewValidator()}
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(requestLogConfig(logger)))
	e.Use(middleware.Recover())

	s := &server{svc: svc, logger: logger}

	e.GET("/healthz", s.health)

	g := e.Group("/api")
	if opts.Admin.Enabled() {
		g.Use(middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
			Realm:     "back office",
			Validator: adminValidator(opts.Admin),
		}))
	}

	g.GET("/labels", s.labels)

	g.GET("/class/:id/availability", s.classAvailability)
	g.GET("/dashboard", s.dashboard)
	g.GET("/dashboard/stats", s.liveStats)
	g.GET("/payments/stats", s.paymentStats)
	g.GET("/registrations/recent", s.recentRegistrations)
	g.GET("/classes/upcoming", s.upcomingClasses)

	g.GET("/registrations", s.listRegistrations)
	g.POST("/registrations", s.createRegistration)
	g.GET("/registrations/:id", s.getRegistration)
	g.PUT("/registrations/:id", s.updateRegistration)
	g.DELETE("/registrations/:id", s.deleteRegistration)
	g.POST("/registrations/:id/payment", s.attachPayment)

	g.POST("/professors", s.createProfessor)
	g.GET("/professors/:id", s.getProfessor)
	g.PUT("/professors/:id", s.updateProfessor)
	g.POST("/students", s.createStudent)
	g.GET("/students/:id", s.getStudent)
	g.PUT("/students/:id", s.updateStudent)
	g.GET("/search/students", s.searchStudents)
	g.POST("/courses", s.createCourse)
	g.GET("/courses/:id", s.getCourse)
	g.PUT("/courses/:id", s.updateCourse)
	g.POST("/classes", s.createClass)
	g.GET("/classes/:id", s.getClass)
	g.PUT("/classes/:id", s.updateClass)

	for _, kind := range guard.Kinds {
		path := "/" + plural(kind) + "/:id"
		g.GET(path+"/deletable", s.canDelete(kind))
		g.DELETE(path, s.deleteEntity(kind))
	}

	return e
}

func plural(kind guard.Kind) string {
	if kind == guard.Class {
		return "classes"
	}
	return string(kind) + "s"
}

func requestLogConfig(logger *slog.Logger) middleware.RequestLoggerConfig {
	return middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("request_id", v.RequestID),
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				if v.Status >= http.StatusInternalServerError {
					level = slog.LevelError
				}
			}
			logger.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	}
}

// adminValidator checks basic auth credentials against the configured admin.
func adminValidator(admin config.Admin) middleware.BasicAuthValidator {
	return func(username, password string, _ echo.Context) (bool, error) {
		if subtle.ConstantTimeCompare([]byte(username), []byte(admin.Username)) != 1 {
			return false, nil
		}
		if admin.PasswordHash != "" {
			err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password))
			return err == nil, nil
		}
		return subtle.ConstantTimeCompare([]byte(password), []byte(admin.Password)) == 1, nil
	}
}

func (s *server) health(c echo.Context) error {
	if s.svc.Health == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := s.svc.Health.Ping(ctx); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) labels(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]labelOption{
		"payment_method": methodLabels.options(),
		"payment_status": statusLabels.options(),
		"course_status":  courseStatusLabels.options(),
	})
}
