package status

import (
	"fmt"
	"time"
)

const closedAlertFormat = "⚠️ ATENÇÃO ⚠️\n\n🔴 %s: %s\n🟢 %s: %s"

func closedAlert(closed, open Side) string {
	return fmt.Sprintf(closedAlertFormat, closed, StatusClosed, open, StatusOpen)
}

func statusSummary(a, b Record, loc *time.Location) string {
	return "📍 *STATUS ATUAL*\n\n" + statusLine(a, loc) + "\n" + statusLine(b, loc)
}

// statusLine omits the update time for a side that was never recorded.
func statusLine(rec Record, loc *time.Location) string {
	marker := "🟢"
	if rec.Status == StatusClosed {
		marker = "🔴"
	}
	line := fmt.Sprintf("%s %s: %s", marker, rec.Entity, rec.Status)
	if !rec.RecordedAt.IsZero() {
		line += " (atualizado às " + rec.RecordedAt.In(loc).Format("15:04") + ")"
	}
	return line
}
