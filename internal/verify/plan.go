// Package verify implements the movie API verification script: a fixed plan of
// HTTP steps executed strictly in order, halting on the first step whose status
// or body does not match.
package verify

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/movie-api/moviecheck/internal/config"
	"github.com/movie-api/moviecheck/internal/movieapi"
)

// Step names, used as metric labels and in shipped results.
const (
	StepHealth         = "health"
	StepHealthFull     = "health-full"
	StepHealthLight    = "health-light"
	StepAdd            = "add"
	StepAddDuplicate   = "add-duplicate"
	StepGet            = "get"
	StepUpdate         = "update"
	StepGetUpdated     = "get-updated"
	StepDelete         = "delete"
	StepGetDeleted     = "get-deleted"
	StepGetNonexistent = "get-nonexistent"
)

// starsTolerance absorbs servers that store the rating as a 32-bit float.
const starsTolerance = 1e-6

// Options select which steps the plan contains and the payloads they send
type Options struct {
	PathPrefix    string
	IDMode        string
	NonexistentID string

	Duplicate    bool
	Health       bool
	HealthFirst  bool
	VerifyFields bool
	UniqueTitle  bool

	Create movieapi.Movie
	Update movieapi.Movie
}

// DefaultOptions returns the options of the stock script: nested routes,
// server-assigned ids, every check enabled, health first.
func DefaultOptions() Options {
	return Options{
		PathPrefix:    "/movies",
		IDMode:        config.IDModeServer,
		NonexistentID: "nonexistent123",
		Duplicate:     true,
		Health:        true,
		HealthFirst:   true,
		VerifyFields:  true,
		Create:        movieapi.Movie{Title: "The Shawshank Redemption", Year: 1994, Stars: 4.5},
		Update:        movieapi.Movie{Title: "The Shawshank Redemption (Director's Cut)", Year: 1994, Stars: 4.8},
	}
}

// OptionsFromConfig derives plan options from the loaded configuration
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.PathPrefix = cfg.Target.PathPrefix
	opts.IDMode = cfg.Target.IDMode
	opts.NonexistentID = cfg.Target.NonexistentID
	opts.Duplicate = cfg.Checks.Duplicate
	opts.Health = cfg.Checks.Health
	opts.HealthFirst = cfg.Checks.HealthFirst
	opts.VerifyFields = cfg.Checks.VerifyFields
	opts.UniqueTitle = cfg.Checks.UniqueTitle
	return opts
}

// Step is one HTTP call of the plan and the status it must answer with
type Step struct {
	Name        string
	Banner      string
	Description string
	Method      string
	Expected    int
	// Pretty marks steps whose passing body is worth printing in verbose mode.
	Pretty bool

	exec  func(ctx context.Context, c *movieapi.Client) (*movieapi.Response, error)
	check func(resp *movieapi.Response) (detail string, err error)
}

// state is shared by the steps of one plan. A plan is single-use.
type state struct {
	opts   Options
	id     string
	create movieapi.Movie
	update movieapi.Movie
}

func newState(opts Options) *state {
	st := &state{opts: opts, create: opts.Create, update: opts.Update}
	if opts.UniqueTitle {
		tag := " TEST-" + movieapi.RandomHex(8)
		st.create.Title += tag
		st.update.Title += tag
	}
	if opts.IDMode == config.IDModeClient {
		st.id = movieapi.NewClientID()
		st.create.ID = st.id
		st.update.ID = st.id
	}
	return st
}

// Plan builds the ordered steps for opts
func Plan(opts Options) []Step {
	st := newState(opts)
	prefix := opts.PathPrefix

	var health []Step
	if opts.Health {
		health = HealthSteps("", "full", "light")
	}

	var steps []Step
	if opts.HealthFirst {
		steps = append(steps, health...)
	}

	steps = append(steps, Step{
		Name:        StepAdd,
		Banner:      "Adding new movie...",
		Description: fmt.Sprintf("Add movie (POST %s/add)", prefix),
		Method:      http.MethodPost,
		Expected:    http.StatusCreated,
		exec: func(ctx context.Context, c *movieapi.Client) (*movieapi.Response, error) {
			return c.Add(ctx, st.create)
		},
		check: st.captureID,
	})

	if opts.Duplicate {
		steps = append(steps, Step{
			Name:        StepAddDuplicate,
			Banner:      "Adding duplicate movie (should be 409 Conflict)...",
			Description: fmt.Sprintf("Add duplicate movie (POST %s/add)", prefix),
			Method:      http.MethodPost,
			Expected:    http.StatusConflict,
			exec: func(ctx context.Context, c *movieapi.Client) (*movieapi.Response, error) {
				return c.Add(ctx, st.create)
			},
		})
	}

	steps = append(steps,
		st.fetchStep(StepGet, "Fetching movie...", "Fetch movie", http.StatusOK, st.create),
		Step{
			Name:        StepUpdate,
			Banner:      "Updating movie...",
			Description: fmt.Sprintf("Update movie (PUT %s/update/{id})", prefix),
			Method:      http.MethodPut,
			Expected:    http.StatusOK,
			exec: func(ctx context.Context, c *movieapi.Client) (*movieapi.Response, error) {
				return c.Update(ctx, st.id, st.update)
			},
		},
		st.fetchStep(StepGetUpdated, "Fetching updated movie...", "Fetch updated movie", http.StatusOK, st.update),
		Step{
			Name:        StepDelete,
			Banner:      "Deleting movie...",
			Description: fmt.Sprintf("Delete movie (DELETE %s/delete/{id})", prefix),
			Method:      http.MethodDelete,
			Expected:    http.StatusNoContent,
			exec: func(ctx context.Context, c *movieapi.Client) (*movieapi.Response, error) {
				return c.Delete(ctx, st.id)
			},
		},
		st.fetchStep(StepGetDeleted, "Fetching deleted movie (should be 404)...", "Fetch deleted movie", http.StatusNotFound, movieapi.Movie{}),
		Step{
			Name:        StepGetNonexistent,
			Banner:      "Fetching non-existent movie...",
			Description: fmt.Sprintf("Fetch non-existent movie (GET %s/get/{id})", prefix),
			Method:      http.MethodGet,
			Expected:    http.StatusNotFound,
			exec: func(ctx context.Context, c *movieapi.Client) (*movieapi.Response, error) {
				return c.Get(ctx, opts.NonexistentID)
			},
		},
	)

	if !opts.HealthFirst {
		steps = append(steps, health...)
	}
	return steps
}

// HealthSteps returns one health check per mode; "" queries without parameters
func HealthSteps(modes ...string) []Step {
	steps := make([]Step, 0, len(modes))
	for _, mode := range modes {
		s := Step{
			Method:   http.MethodGet,
			Expected: http.StatusOK,
			Pretty:   true,
			exec: func(ctx context.Context, c *movieapi.Client) (*movieapi.Response, error) {
				return c.Health(ctx, mode)
			},
		}
		switch mode {
		case "":
			s.Name = StepHealth
			s.Banner = "Checking health endpoint (light, no params)..."
			s.Description = "Health check (no params)"
		default:
			s.Name = StepHealth + "-" + mode
			s.Banner = fmt.Sprintf("Checking health endpoint (mode=%s)...", mode)
			s.Description = fmt.Sprintf("Health check (mode=%s)", mode)
		}
		steps = append(steps, s)
	}
	return steps
}

// fetchStep builds a GET of the captured id. want is confirmed against the
// body only on 200 steps with field verification enabled.
func (st *state) fetchStep(name, banner, label string, expected int, want movieapi.Movie) Step {
	s := Step{
		Name:        name,
		Banner:      banner,
		Description: fmt.Sprintf("%s (GET %s/get/{id})", label, st.opts.PathPrefix),
		Method:      http.MethodGet,
		Expected:    expected,
		Pretty:      expected == http.StatusOK,
		exec: func(ctx context.Context, c *movieapi.Client) (*movieapi.Response, error) {
			return c.Get(ctx, st.id)
		},
	}
	if expected == http.StatusOK && st.opts.VerifyFields {
		s.check = func(resp *movieapi.Response) (string, error) {
			return "", st.confirm(name, want, resp)
		}
	}
	return s
}

// captureID records the id of the created movie. Server-assigned ids must be
// present in the 201 body.
func (st *state) captureID(resp *movieapi.Response) (string, error) {
	if st.opts.IDMode != config.IDModeClient {
		m, err := resp.Movie()
		if err != nil || m.ID == "" {
			return "", &FieldError{Step: StepAdd, Field: "id", Want: "a server-assigned id", Got: bodyForError(resp.Body)}
		}
		st.id = m.ID
	}
	return "Movie created with ID: " + st.id, nil
}

// confirm checks that the fetched movie carries the submitted values
func (st *state) confirm(step string, want movieapi.Movie, resp *movieapi.Response) error {
	got, err := resp.Movie()
	if err != nil {
		return &FieldError{Step: step, Field: "body", Want: "a movie object", Got: bodyForError(resp.Body)}
	}
	if got.ID != "" && got.ID != st.id {
		return &FieldError{Step: step, Field: "id", Want: strconv.Quote(st.id), Got: strconv.Quote(got.ID)}
	}
	if got.Title != want.Title {
		return &FieldError{Step: step, Field: "title", Want: strconv.Quote(want.Title), Got: strconv.Quote(got.Title)}
	}
	if got.Year != want.Year {
		return &FieldError{Step: step, Field: "year", Want: strconv.Itoa(want.Year), Got: strconv.Itoa(got.Year)}
	}
	if math.Abs(got.Stars-want.Stars) > starsTolerance {
		return &FieldError{
			Step:  step,
			Field: "stars",
			Want:  strconv.FormatFloat(want.Stars, 'g', -1, 64),
			Got:   strconv.FormatFloat(got.Stars, 'g', -1, 64),
		}
	}
	return nil
}

func bodyForError(body []byte) string {
	if len(body) == 0 {
		return "an empty body"
	}
	const limit = 200
	if len(body) > limit {
		return strconv.Quote(string(body[:limit]) + "...")
	}
	return strconv.Quote(string(body))
}
