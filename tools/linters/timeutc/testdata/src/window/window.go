package window

import (
	"time"
	clock "time"
)

func today() time.Time {
	return time.Now().Truncate(24 * time.Hour) // want "time.Now\\(\\) should be followed by .UTC\\(\\) for timezone consistency"
}

func todayUTC() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

func createdAt() time.Time {
	now := time.Now() // want "time.Now\\(\\) should be followed by .UTC\\(\\) for timezone consistency"
	return now
}

func aliased() time.Time {
	return clock.Now() // want "time.Now\\(\\) should be followed by .UTC\\(\\) for timezone consistency"
}

func aliasedUTC() time.Time {
	return clock.Now().UTC()
}

func clockFunc() func() time.Time {
	return time.Now
}

func stamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func deadline() time.Time {
	//nolint
	return time.Now().Add(time.Second)
}

func writeDeadline() time.Time {
	return time.Now().Add(time.Second) //nolint:timeutc
}

func listed() time.Time {
	return time.Now() //nolint:errcheck,timeutc
}

func otherLinter() time.Time {
	return time.Now() //nolint:errcheck // want "time.Now\\(\\) should be followed by .UTC\\(\\) for timezone consistency"
}

type fake struct{}

func (fake) Now() time.Time { return time.Time{} }

func notTheTimePackage() time.Time {
	var time fake
	return time.Now()
}
