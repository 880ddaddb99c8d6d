package api

import (
	"fmt"
	"strings"

	"github.com/langschool/backoffice/pkg/models"
	"github.com/langschool/backoffice/pkg/runtime"
)

// label ties a canonical value to its Persian display text and the short
// forms older records and forms still use.
type label struct {
	value   string
	display string
	aliases []string
}

// labelTable is a bidirectional mapping between canonical values and labels.
type labelTable struct {
	field   string
	labels  []label
	byInput map[string]string
	byValue map[string]string
}

func newLabelTable(field string, labels ...label) *labelTable {
	t := &labelTable{
		field:   field,
		labels:  labels,
		byInput: make(map[string]string),
		byValue: make(map[string]string),
	}
	for _, l := range labels {
		t.byValue[l.value] = l.display
		t.byInput[l.value] = l.value
		t.byInput[l.display] = l.value
		for _, alias := range l.aliases {
			t.byInput[alias] = l.value
		}
	}
	return t
}

// parse resolves a canonical value, display label or alias. Blank input
// resolves to blank.
func (t *labelTable) parse(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if v, ok := t.byInput[s]; ok {
		return v, nil
	}
	if v, ok := t.byInput[strings.ToLower(s)]; ok {
		return v, nil
	}
	return "", &runtime.ValidationError{Field: t.field, Message: fmt.Sprintf("unknown value %q", s)}
}

// display returns the label of a canonical value, or the value itself when
// it has none.
func (t *labelTable) display(value string) string {
	if d, ok := t.byValue[value]; ok {
		return d
	}
	return value
}

var methodLabels = newLabelTable("payment_method",
	label{value: string(models.MethodCash), display: "نقدی", aliases: []string{"نقد"}},
	label{value: string(models.MethodCardToCard), display: "کارت به کارت", aliases: []string{"کارت"}},
	label{value: string(models.MethodBankTransfer), display: "انتقال بانکی"},
	label{value: string(models.MethodOnline), display: "پرداخت آنلاین", aliases: []string{"آنلاین"}},
	label{value: string(models.MethodCheck), display: "چک"},
)

var statusLabels = newLabelTable("payment_status",
	label{value: string(models.StatusPending), display: "در انتظار", aliases: []string{"انتظار"}},
	label{value: string(models.StatusCompleted), display: "تکمیل شده", aliases: []string{"تکمیل"}},
)

var courseStatusLabels = newLabelTable("course_status",
	label{value: string(models.CourseActive), display: "فعال"},
	label{value: string(models.CourseInactive), display: "غیرفعال", aliases: []string{"غیر فعال"}},
)

// ParsePaymentMethod accepts a canonical method or any of its labels.
func ParsePaymentMethod(s string) (models.PaymentMethod, error) {
	v, err := methodLabels.parse(s)
	return models.PaymentMethod(v), err
}

// PaymentMethodLabel returns the display label of m.
func PaymentMethodLabel(m models.PaymentMethod) string {
	return methodLabels.display(string(m))
}

// ParsePaymentStatus accepts a canonical status or any of its labels.
func ParsePaymentStatus(s string) (models.PaymentStatus, error) {
	v, err := statusLabels.parse(s)
	return models.PaymentStatus(v), err
}

// PaymentStatusLabel returns the display label of s.
func PaymentStatusLabel(s models.PaymentStatus) string {
	return statusLabels.display(string(s))
}

// ParseCourseStatus accepts a canonical course status or its label.
func ParseCourseStatus(s string) (models.CourseStatus, error) {
	v, err := courseStatusLabels.parse(s)
	return models.CourseStatus(v), err
}

// labelOption is one entry of a select list.
type labelOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func (t *labelTable) options() []labelOption {
	opts := make([]labelOption, 0, len(t.labels))
	for _, l := range t.labels {
		opts = append(opts, labelOption{Value: l.value, Label: l.display})
	}
	return opts
}
