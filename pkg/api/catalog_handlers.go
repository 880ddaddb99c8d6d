package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/langschool/backoffice/pkg/catalog"
)

const defaultSearchLimit = 10

func created(c echo.Context, id int64) error {
	return c.JSON(http.StatusCreated, map[string]int64{"id": id})
}

func (s *server) createProfessor(c echo.Context) error {
	var in catalog.ProfessorInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	id, err := s.svc.Catalog.CreateProfessor(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return created(c, id)
}

func (s *server) getProfessor(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	p, err := s.svc.Catalog.GetProfessor(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *server) updateProfessor(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in catalog.ProfessorInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := s.svc.Catalog.UpdateProfessor(c.Request().Context(), id, in); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *server) createStudent(c echo.Context) error {
	var in catalog.StudentInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	id, err := s.svc.Catalog.CreateStudent(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return created(c, id)
}

func (s *server) getStudent(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	st, err := s.svc.Catalog.GetStudent(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (s *server) updateStudent(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in catalog.StudentInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := s.svc.Catalog.UpdateStudent(c.Request().Context(), id, in); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *server) searchStudents(c echo.Context) error {
	limit := defaultSearchLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	students, err := s.svc.Catalog.SearchStudents(c.Request().Context(), c.QueryParam("q"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, students)
}

// bindCourse accepts the course status as a canonical value or a label.
func bindCourse(c echo.Context) (catalog.CourseInput, error) {
	var in catalog.CourseInput
	if err := c.Bind(&in); err != nil {
		return in, err
	}
	status, err := ParseCourseStatus(string(in.Status))
	if err != nil {
		return in, err
	}
	in.Status = status
	return in, nil
}

func (s *server) createCourse(c echo.Context) error {
	in, err := bindCourse(c)
	if err != nil {
		return err
	}
	id, err := s.svc.Catalog.CreateCourse(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return created(c, id)
}

func (s *server) getCourse(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	course, err := s.svc.Catalog.GetCourse(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, course)
}

func (s *server) updateCourse(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	in, err := bindCourse(c)
	if err != nil {
		return err
	}
	if err := s.svc.Catalog.UpdateCourse(c.Request().Context(), id, in); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *server) createClass(c echo.Context) error {
	var in catalog.ClassInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	id, err := s.svc.Catalog.CreateClass(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return created(c, id)
}

func (s *server) getClass(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	class, err := s.svc.Catalog.GetClass(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, class)
}

func (s *server) updateClass(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in catalog.ClassInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := s.svc.Catalog.UpdateClass(c.Request().Context(), id, in); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
