package services

import (
	"fmt"
	"time"
)

const (
	// DefaultSlotDays - на сколько дней вперед показывается сетка записи.
	DefaultSlotDays = 30
	// MaxSlotDays ограничивает запрос сетки.
	MaxSlotDays = 90

	dateLayout   = "2006-01-02"
	firstSlotMin = 9 * 60
	lastSlotMin  = 16*60 + 30
	slotStepMin  = 30
)

// DaySlots - доступное время записи на один день.
type DaySlots struct {
	Date  string   `json:"date"`
	Times []string `json:"times"`
}

// SlotTimes возвращает времена записи в течение дня: каждые полчаса с 09:00 по 16:30.
func SlotTimes() []string {
	times := make([]string, 0, (lastSlotMin-firstSlotMin)/slotStepMin+1)
	for m := firstSlotMin; m <= lastSlotMin; m += slotStepMin {
		times = append(times, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return times
}

// IsValidSlotTime проверяет, что время совпадает с одним из слотов.
func IsValidSlotTime(t string) bool {
	parsed, err := time.Parse("15:04", t)
	if err != nil || parsed.Format("15:04") != t {
		return false
	}
	m := parsed.Hour()*60 + parsed.Minute()
	return m >= firstSlotMin && m <= lastSlotMin && (m-firstSlotMin)%slotStepMin == 0
}

// GenerateTimeSlots строит сетку на days календарных дней, начиная с today.
func GenerateTimeSlots(today time.Time, days int) []DaySlots {
	if days <= 0 {
		days = DefaultSlotDays
	}
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	times := SlotTimes()

	out := make([]DaySlots, 0, days)
	for i := 0; i < days; i++ {
		out = append(out, DaySlots{
			Date:  start.AddDate(0, 0, i).Format(dateLayout),
			Times: append([]string(nil), times...),
		})
	}
	return out
}
