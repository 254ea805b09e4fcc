// Package substitutions fetches teacher absence data from the
// community-run substitution schedule endpoint. The endpoint lives
// outside the portal origin and needs no session, so the package
// carries its own HTTP client instead of reusing the portal one.
//
// The endpoint is best effort: it goes down regularly, and callers are
// expected to render something anyway. Substitutions and
// TeacherAbsences therefore degrade to a placeholder response carrying
// a status message instead of failing; Fetch surfaces the raw error
// for callers that want to distinguish.
package substitutions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"jecnaapi/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/jecna/substitutions")

const DefaultEndpoint = "https://jecnarozvrh.jzitnik.dev/versioned/v1"

// status message of the fallback response, in the endpoint's language
const endpointDownMessage = "Endpoint na suplování je nyní nedostupný!"

// date label of the fallback absence day
const unknownDateLabel = "(unknown date)"

// schedule day key holding the absence entries
const absenceKey = "ABSENCE"

// AbsenceHours is the hour span a teacher absence covers. To is zero
// when the absence is a single hour.
type AbsenceHours struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// TeacherAbsence is one absence entry of a schedule day.
type TeacherAbsence struct {
	// full teacher name, empty when the endpoint could not resolve it
	Teacher     string `json:"teacher"`
	TeacherCode string `json:"teacherCode"`
	// wholeDay, single, range, exkurze or invalid
	Type  string        `json:"type"`
	Hours *AbsenceHours `json:"hours"`
	// unparsed source token, set when Type is "invalid"
	Original string `json:"original"`
	// user facing note, set on the placeholder entry when the endpoint
	// is down
	Message string `json:"message"`
}

// Prop carries the per-day metadata the endpoint publishes alongside
// the schedule. Indexes correspond to Response.Schedule.
type Prop struct {
	Date string `json:"date"`
	// whether the day's substitutions are still being prepared
	Preparation bool `json:"priprava"`
}

type Status struct {
	LastUpdated           string `json:"lastUpdated"`
	CurrentUpdateSchedule int    `json:"currentUpdateSchedule"`
	// set when something is wrong with the data, empty otherwise
	Message string `json:"message"`
}

// Response is the decoded substitution schedule. Schedule days are kept
// as raw maps: the endpoint publishes one loosely shaped key per class
// plus the ABSENCE entries, and only the latter have a stable shape.
type Response struct {
	Schedule []map[string]json.RawMessage `json:"schedule"`
	Props    []Prop                       `json:"props"`
	Status   Status                       `json:"status"`
}

// EndpointDown reports whether this is the fallback response produced
// when the endpoint could not be reached or decoded.
func (r *Response) EndpointDown() bool {
	return len(r.Schedule) == 0 && len(r.Props) == 0 && r.Status.Message != ""
}

// AbsencesByDay extracts the teacher absences of each schedule day,
// index for index. Days without decodable absences yield nil.
func (r *Response) AbsencesByDay() [][]TeacherAbsence {
	days := make([][]TeacherAbsence, len(r.Schedule))
	for i, day := range r.Schedule {
		raw, ok := day[absenceKey]
		if !ok {
			continue
		}
		days[i] = decodeAbsences(raw)
	}
	return days
}

// DayAbsences are the absences of one day labeled with its date.
type DayAbsences struct {
	Date     string
	Absences []TeacherAbsence
}

// AbsencesByDate pairs each day's absences with the date from Props.
func (r *Response) AbsencesByDate() []DayAbsences {
	byDay := r.AbsencesByDay()
	labeled := make([]DayAbsences, len(r.Props))
	for i, prop := range r.Props {
		labeled[i].Date = prop.Date
		if i < len(byDay) {
			labeled[i].Absences = byDay[i]
		}
	}
	return labeled
}

// decodeAbsences is deliberately lenient: the entries are scraped by a
// third party and individual ones come out malformed now and then.
// Elements that are not objects or lack the code or type are dropped,
// never failing the whole day.
func decodeAbsences(raw json.RawMessage) []TeacherAbsence {
	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil
	}
	var absences []TeacherAbsence
	for _, element := range elements {
		var absence TeacherAbsence
		if err := json.Unmarshal(element, &absence); err != nil {
			continue
		}
		if absence.TeacherCode == "" || absence.Type == "" {
			continue
		}
		absences = append(absences, absence)
	}
	return absences
}

type ClientOptions struct {
	// full endpoint URL, DefaultEndpoint when empty
	Endpoint string
	// sent verbatim; empty omits the User-Agent header entirely
	UserAgent string
	// per HTTP call, defaults to 10s
	Timeout time.Duration
}

// Client fetches the substitution schedule. Safe for concurrent use.
type Client struct {
	endpoint string
	http     *resty.Client
}

func NewClient(opts ClientOptions) *Client {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 10
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", opts.UserAgent)
	telemetry.InstrumentResty(client, "scrapers/jecna/substitutions/http")

	return &Client{endpoint: endpoint, http: client}
}

func (c *Client) Close() {
	c.http.GetClient().CloseIdleConnections()
}

// Fetch retrieves and decodes the current substitution data, surfacing
// transport and decode failures to the caller.
func (c *Client) Fetch(ctx context.Context) (*Response, error) {
	ctx, span := tracer.Start(ctx, "substitutions:Fetch")
	defer span.End()

	res, err := c.http.R().SetContext(ctx).Get(c.endpoint)
	if err != nil {
		span.SetStatus(codes.Error, "substitution request failed")
		return nil, err
	}
	if res.StatusCode() != http.StatusOK {
		span.SetStatus(codes.Error, "substitution endpoint errored")
		return nil, fmt.Errorf("substitution endpoint returned status %d", res.StatusCode())
	}

	response := &Response{}
	if err := json.Unmarshal(res.Body(), response); err != nil {
		span.SetStatus(codes.Error, "substitution response undecodable")
		return nil, fmt.Errorf("decoding substitution response: %w", err)
	}
	return response, nil
}

// Substitutions returns the current substitution data, degrading to a
// fallback response with an explanatory status message when the
// endpoint is unreachable or returns garbage.
func (c *Client) Substitutions(ctx context.Context) *Response {
	response, err := c.Fetch(ctx)
	if err != nil {
		slog.WarnContext(ctx, "substitution endpoint unavailable", "err", err)
		return &Response{Status: Status{Message: endpointDownMessage}}
	}
	return response
}

// TeacherAbsences returns the absences of every published day, labeled
// by date. When the endpoint is down the result is a single placeholder
// day carrying the status message, so callers always have something to
// show.
func (c *Client) TeacherAbsences(ctx context.Context) []DayAbsences {
	ctx, span := tracer.Start(ctx, "substitutions:TeacherAbsences")
	defer span.End()

	response := c.Substitutions(ctx)
	if response.EndpointDown() {
		return []DayAbsences{{
			Date:     unknownDateLabel,
			Absences: []TeacherAbsence{{Message: response.Status.Message}},
		}}
	}
	return response.AbsencesByDate()
}
