package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, normalizeLimit(0))
	assert.Equal(t, DefaultLimit, normalizeLimit(-3))
	assert.Equal(t, 12, normalizeLimit(12))
}

func TestUpcomingClassAvailable(t *testing.T) {
	assert.Equal(t, int64(3), UpcomingClass{Capacity: 10, Registered: 7}.Available())
	assert.Equal(t, int64(-1), UpcomingClass{Capacity: 2, Registered: 3}.Available())
}

func TestDashboardString(t *testing.T) {
	d := Dashboard{Professors: 1, Students: 2, Courses: 3, Classes: 4, Registrations: 5, Revenue: 150}
	assert.Equal(t, "professors=1 students=2 courses=3 classes=4 registrations=5 revenue=150.00", d.String())
}
