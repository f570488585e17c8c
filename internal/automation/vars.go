package automation

import (
	"strings"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/persistence"
)

const (
	dateLayout = "Monday, January 2"
	timeLayout = "3:04 PM"
)

func clientVars(ev Evaluation, client persistence.Client) map[string]string {
	return map[string]string{
		"firstName":  client.FirstName,
		"lastName":   client.LastName,
		"fullName":   strings.TrimSpace(client.FirstName + " " + client.LastName),
		"email":      client.Email,
		"phone":      client.Phone,
		"studioName": ev.Studio.Name,
	}
}

func bookingVars(ev Evaluation, detail persistence.BookingDetail) map[string]string {
	vars := clientVars(ev, detail.Client)
	start := detail.Session.Start.In(ev.location())
	vars["bookingId"] = detail.Booking.ID
	vars["className"] = detail.ClassTypeName
	vars["teacherName"] = detail.TeacherName
	vars["locationName"] = detail.LocationName
	vars["classDate"] = start.Format(dateLayout)
	vars["classTime"] = start.Format(timeLayout)
	return vars
}
