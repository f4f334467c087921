package stream

import (
	"fmt"
	"time"

	"github.com/tiborschneider/go-routeviews/pkg/source"
)

// FilterInterval is the time window of a query. A nil FilterInterval is an
// open interval, unbounded on both ends.
type FilterInterval interface {
	apply(src source.Source) error
}

// Interval keeps records between Start and Stop. A zero Stop leaves the
// stream without an upper bound: once it catches up to real time it keeps
// waiting for new records (live mode).
type Interval struct {
	Start time.Time
	Stop  time.Time
}

func (iv Interval) apply(src source.Source) error {
	var stop uint32
	if !iv.Stop.IsZero() {
		stop = uint32(iv.Stop.Unix())
	}
	if err := src.AddIntervalFilter(uint32(iv.Start.Unix()), stop); err != nil {
		return fmt.Errorf("%w: %v", ErrIntervalRejected, err)
	}
	return nil
}

// Since keeps records from a relative window reaching back from now, like
// Since{Amount: 1, Unit: Hours}. With Live set the stream keeps following
// new records after catching up, making it endless.
type Since struct {
	Amount int
	Unit   TimeUnit
	Live   bool
}

func (iv Since) apply(src source.Source) error {
	desc := fmt.Sprintf("%d %s", iv.Amount, iv.Unit)
	if err := src.AddRecentIntervalFilter(desc, iv.Live); err != nil {
		return fmt.Errorf("%w: %v", ErrRecentIntervalRejected, err)
	}
	return nil
}

// TimeUnit is the unit of a Since window.
type TimeUnit int

const (
	Seconds TimeUnit = iota
	Minutes
	Hours
	Days
)

func (u TimeUnit) String() string {
	switch u {
	case Seconds:
		return "s"
	case Minutes:
		return "m"
	case Hours:
		return "h"
	case Days:
		return "d"
	}
	return "?"
}
