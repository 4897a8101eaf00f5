package timeframe

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Period is an admin-selectable reporting window.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

type BucketSize string

const (
	BucketSizeHour  BucketSize = "hour"
	BucketSizeDay   BucketSize = "day"
	BucketSizeWeek  BucketSize = "week"
	BucketSizeMonth BucketSize = "month"
)

// MaxBuckets caps the length of a generated series.
const MaxBuckets = 1000

// averageMonthDays is used to count month buckets in a window measured in days.
const averageMonthDays = 30.4

var (
	ErrInvalidPeriod     = errors.New("invalid period")
	ErrInvalidBucketSize = errors.New("invalid groupBy")
	ErrTooManyBuckets    = errors.New("too many buckets")
)

type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider reads the system clock in UTC.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now() time.Time {
	return time.Now().UTC()
}

func ParsePeriod(value string) (Period, error) {
	switch p := Period(value); p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, value)
	}
}

func ParseBucketSize(value string) (BucketSize, error) {
	switch b := BucketSize(value); b {
	case BucketSizeHour, BucketSizeDay, BucketSizeWeek, BucketSizeMonth:
		return b, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidBucketSize, value)
	}
}

// Length is the duration of the period's trailing window.
func (p Period) Length() time.Duration {
	switch p {
	case PeriodDay:
		return 24 * time.Hour
	case PeriodMonth:
		return 30 * 24 * time.Hour
	case PeriodYear:
		return 365 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

func (p Period) DefaultBucketSize() BucketSize {
	switch p {
	case PeriodDay:
		return BucketSizeHour
	case PeriodYear:
		return BucketSizeMonth
	default:
		return BucketSizeDay
	}
}

// Window is the half-open UTC interval [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// Current returns the trailing window of p ending at now.
func (p Period) Current(now time.Time) Window {
	now = now.UTC()
	return Window{From: now.Add(-p.Length()), To: now}
}

// Previous returns the window of equal length immediately before w.
func (w Window) Previous() Window {
	return Window{From: w.From.Add(-w.To.Sub(w.From)), To: w.From}
}

// TimeFrame splits the trailing window of a period into equal buckets that
// tile it exactly: the first bucket starts at now - Length and the last one
// ends at now. Step is Length / Buckets, so week and month buckets stretch
// slightly to absorb the remainder (a year of months is 12 x 30.4 days).
type TimeFrame struct {
	Period     Period
	BucketSize BucketSize
	Start      time.Time
	Step       time.Duration
	Buckets    int

	end time.Time
}

// BucketCount is the number of buckets of size b that fit in the window of p.
func BucketCount(p Period, b BucketSize) int {
	var n int
	switch b {
	case BucketSizeHour:
		n = int(p.Length() / time.Hour)
	case BucketSizeDay:
		n = int(p.Length() / (24 * time.Hour))
	case BucketSizeWeek:
		n = int(p.Length() / (7 * 24 * time.Hour))
	case BucketSizeMonth:
		days := p.Length().Hours() / 24
		n = int(math.Round(days / averageMonthDays))
	}
	if n < 1 {
		n = 1
	}
	return n
}

func NewTimeFrame(p Period, b BucketSize, now time.Time) (*TimeFrame, error) {
	if _, err := ParsePeriod(string(p)); err != nil {
		return nil, err
	}
	if _, err := ParseBucketSize(string(b)); err != nil {
		return nil, err
	}

	n := BucketCount(p, b)
	if n > MaxBuckets {
		return nil, fmt.Errorf("%w: %s over a %s is %d buckets (max %d)", ErrTooManyBuckets, b, p, n, MaxBuckets)
	}

	window := p.Current(now)
	return &TimeFrame{
		Period:     p,
		BucketSize: b,
		Start:      window.From,
		Step:       p.Length() / time.Duration(n),
		Buckets:    n,
		end:        window.To,
	}, nil
}

// End is the exclusive end of the last bucket.
func (tf *TimeFrame) End() time.Time {
	return tf.end
}

// GetSQLiteBucketExpression returns the SQLite expression that maps column to
// its bucket index, along with the arguments for its placeholders. Indexes are
// clamped to [0, Buckets-1].
func (tf *TimeFrame) GetSQLiteBucketExpression(column string) (string, []any) {
	expr := fmt.Sprintf("MIN(MAX(CAST((julianday(%s) - ?) * 86400.0 / ? AS INTEGER), 0), ?)", column)
	return expr, []any{julianDay(tf.Start), tf.Step.Seconds(), tf.Buckets - 1}
}

// BucketIndex returns the bucket containing t, or -1 when t is outside the frame.
func (tf *TimeFrame) BucketIndex(t time.Time) int {
	if t.Before(tf.Start) || !t.Before(tf.end) {
		return -1
	}
	return min(int(t.Sub(tf.Start)/tf.Step), tf.Buckets-1)
}

// BucketStarts lists the start of every bucket in order.
func (tf *TimeFrame) BucketStarts() []time.Time {
	starts := make([]time.Time, tf.Buckets)
	for i := range starts {
		starts[i] = tf.Start.Add(time.Duration(i) * tf.Step)
	}
	return starts
}

// BucketStat is a grouped query row keyed by bucket index.
type BucketStat struct {
	Bucket   int
	Views    int64
	Visitors int64
}

// Point is one entry of a gap-filled series. Period is the bucket start in RFC 3339.
type Point struct {
	Period   string `json:"period"`
	Views    int64  `json:"views"`
	Visitors int64  `json:"visitors"`
}

// BuildTimeSeriesPoints returns one point per bucket, zero-filled where
// grouped has no row. Rows with an index outside the frame are ignored.
func (tf *TimeFrame) BuildTimeSeriesPoints(grouped []BucketStat) []Point {
	points := make([]Point, tf.Buckets)
	for i, start := range tf.BucketStarts() {
		points[i].Period = start.UTC().Format(time.RFC3339)
	}
	for _, row := range grouped {
		if row.Bucket < 0 || row.Bucket >= tf.Buckets {
			continue
		}
		points[row.Bucket].Views += row.Views
		points[row.Bucket].Visitors += row.Visitors
	}
	return points
}

// julianDay converts t to the fractional day number SQLite's julianday() uses.
func julianDay(t time.Time) float64 {
	return float64(t.UnixNano())/float64(24*time.Hour) + 2440587.5
}
