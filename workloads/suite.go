package workloads

import (
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/calbench/benchmark"
)

// Benchmark names, in registration order.
const (
	NameNextThousandThanksgivings                 = "nextThousandThanksgivings"
	NameCurrentDateComponentsFromThanksgivings    = "CurrentDateComponentsFromThanksgivings"
	NameAllocationsForFixedCalendars              = "allocationsForFixedCalendars"
	NameAllocationsForCurrentCalendar             = "allocationsForCurrentCalendar"
	NameAllocationsForAutoupdatingCurrentCalendar = "allocationsForAutoupdatingCurrentCalendar"
	NameCopyOnWritePerformance                    = "copyOnWritePerformance"
	NameCopyOnWritePerformanceNoDiff              = "copyOnWritePerformanceNoDiff"
	NameAllocationsForFixedLocale                 = "allocationsForFixedLocale"
	NameAllocationsForCurrentLocale               = "allocationsForCurrentLocale"
	NameAllocationsForAutoupdatingCurrentLocale   = "allocationsForAutoupdatingCurrentLocale"
	NameIdentifierFromComponents                  = "identifierFromComponents"
)

// thanksgivingCount is how many Thanksgivings one invocation enumerates.
const thanksgivingCount = 1000

// Reference is the fixed instant the calendar workloads start from,
// 2016-09-23T14:35:55-0700.
var Reference = time.Unix(1474666555, 795410000).UTC()

var errEmptyResult = errors.New("workload produced an empty result")

type entry struct {
	name     string
	workload benchmark.WorkloadFunc
	override *benchmark.Override
}

func suite() []entry {
	mega := benchmark.NewOverride().WithScalingFactor(benchmark.Mega).Build()
	return []entry{
		{name: NameNextThousandThanksgivings, workload: nextThousandThanksgivings},
		{name: NameCurrentDateComponentsFromThanksgivings, workload: currentDateComponentsFromThanksgivings},
		{name: NameAllocationsForFixedCalendars, workload: addDays(Gregorian), override: mega},
		{name: NameAllocationsForCurrentCalendar, workload: addDays(CurrentCalendar), override: mega},
		{name: NameAllocationsForAutoupdatingCurrentCalendar, workload: addDays(AutoupdatingCurrentCalendar), override: mega},
		{name: NameCopyOnWritePerformance, workload: copyOnWrite, override: mega},
		{name: NameCopyOnWritePerformanceNoDiff, workload: copyOnWriteNoDiff, override: mega},
		{name: NameAllocationsForFixedLocale, workload: fixedLocale, override: mega},
		{name: NameAllocationsForCurrentLocale, workload: currentLocale(CurrentLocale), override: mega},
		{name: NameAllocationsForAutoupdatingCurrentLocale, workload: currentLocale(AutoupdatingCurrentLocale), override: mega},
		{name: NameIdentifierFromComponents, workload: identifierFromComponents, override: mega},
	}
}

// Register adds every calendar and locale benchmark to reg.
//
// Arguments:
// - reg: The registry to add to.
//
// Returns:
// - error: The first registration error, e.g. benchmark.ErrDuplicateName.
func Register(reg *benchmark.Registry) error {
	for _, e := range suite() {
		if err := reg.Register(e.name, e.workload, e.override); err != nil {
			return err
		}
	}
	return nil
}

// Overrides returns the registration-time override of each benchmark that has one.
func Overrides() map[string]*benchmark.Override {
	out := make(map[string]*benchmark.Override)
	for _, e := range suite() {
		if e.override != nil {
			out[e.name] = e.override
		}
	}
	return out
}

func nextThousandThanksgivings(*benchmark.Invocation) error {
	count := thanksgivingCount
	for range Gregorian().Dates(Reference, Thanksgiving) {
		count--
		if count == 0 {
			break
		}
	}
	if count != 0 {
		return errors.Errorf("enumerated %d of %d dates", thanksgivingCount-count, thanksgivingCount)
	}
	return nil
}

func currentDateComponentsFromThanksgivings(*benchmark.Invocation) error {
	cal := CurrentCalendar()
	count := thanksgivingCount
	for d := range cal.Dates(Reference, Thanksgiving) {
		count--
		if c := cal.Components(d); c.Month != time.November {
			return errors.Errorf("date %s is not in November", d)
		}
		if count == 0 {
			break
		}
	}
	return nil
}

func addDays(newCalendar func() Calendar) benchmark.WorkloadFunc {
	return func(inv *benchmark.Invocation) error {
		for range inv.ScaledIterations() {
			cal := newCalendar()
			if cal.AddDays(Reference, 1).IsZero() {
				return errEmptyResult
			}
		}
		return nil
	}
}

func copyOnWrite(inv *benchmark.Invocation) error {
	cal := Gregorian()
	for i := range inv.ScaledIterations() {
		want := time.Weekday(i % 2)
		cal = cal.WithFirstWeekday(want)
		if cal.FirstWeekday() != want {
			return errors.Errorf("first weekday is %s, want %s", cal.FirstWeekday(), want)
		}
	}
	return nil
}

// halfHourEast is a fixed zone 1800 seconds ahead of UTC.
var halfHourEast = time.FixedZone("GMT+0030", 1800)

func copyOnWriteNoDiff(inv *benchmark.Invocation) error {
	cal := Gregorian()
	for range inv.ScaledIterations() {
		cal = cal.WithLocation(halfHourEast)
	}
	if cal.Location() != halfHourEast {
		return errors.New("location was not applied")
	}
	return nil
}

func fixedLocale(inv *benchmark.Invocation) error {
	for range inv.ScaledIterations() {
		loc, err := NewLocale("en_US")
		if err != nil {
			return err
		}
		if id := loc.Identifier(); id != "en_US" {
			return errors.Errorf("identifier is %q, want %q", id, "en_US")
		}
	}
	return nil
}

func currentLocale(get func() Locale) benchmark.WorkloadFunc {
	return func(inv *benchmark.Invocation) error {
		for range inv.ScaledIterations() {
			if get().Identifier() == "" {
				return errEmptyResult
			}
		}
		return nil
	}
}

var (
	englishComponents = LocaleComponents{Language: "en"}
	chineseComponents = LocaleComponents{Language: "zh", Script: "Hans", Region: "TW"}
	spanishComponents = LocaleComponents{Language: "es", Script: "", Region: "409"}
)

func identifierFromComponents(inv *benchmark.Invocation) error {
	for range inv.ScaledIterations() {
		id1 := IdentifierFromComponents(englishComponents)
		id2 := IdentifierFromComponents(chineseComponents)
		id3 := IdentifierFromComponents(spanishComponents)
		if id1 == "" || id2 == "" || id3 == "" {
			return errEmptyResult
		}
	}
	return nil
}
