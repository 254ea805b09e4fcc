package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Europe/Prague")
	if err != nil {
		panic(err)
	}
}

// The portal renders every date and time in Czech local time with no
// offset information, so all date arithmetic has to happen in Prague
// regardless of where the process runs.
func Now() time.Time {
	return time.Now().In(Location)
}
