package sm2

import (
	"math"
	"time"
)

// AgeMultiplier scales intervals by learner age. Younger learners review
// more often; an unknown age (<= 0) leaves intervals unchanged.
func AgeMultiplier(age int) float64 {
	switch {
	case age <= 0:
		return 1.0
	case age <= 9:
		return 0.8
	case age <= 12:
		return 0.9
	case age <= 18:
		return 1.0
	default:
		return 1.1
	}
}

// ExamProximityMultiplier shortens intervals as the exam approaches.
// A negative value means the exam has passed.
func ExamProximityMultiplier(daysUntilExam int) float64 {
	switch {
	case daysUntilExam < 0:
		return 1.0
	case daysUntilExam <= 7:
		return 0.5
	case daysUntilExam <= 14:
		return 0.7
	case daysUntilExam <= 30:
		return 0.85
	case daysUntilExam <= 60:
		return 0.95
	default:
		return 1.0
	}
}

// Multiplier combines the age and exam-proximity lookups. Nil inputs are
// treated as unknown.
func Multiplier(age *int, examDate *time.Time, now time.Time) float64 {
	m := 1.0
	if age != nil {
		m *= AgeMultiplier(*age)
	}
	if examDate != nil {
		y, mo, d := examDate.Date()
		exam := time.Date(y, mo, d, 0, 0, 0, 0, now.Location())
		days := int(math.Round(exam.Sub(startOfDay(now)).Hours() / 24))
		m *= ExamProximityMultiplier(days)
	}
	return m
}
