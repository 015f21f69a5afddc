// Package deploy holds the create, delete and quick-test workflows for the
// deployable agents, plus the scripted example conversation.
package deploy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"agentdeck/internal/config"
	"agentdeck/internal/engine"
)

var (
	ErrMissingEnv         = errors.New("missing required environment variable")
	ErrResourceIDRequired = errors.New("resource_id is required")
	ErrUnknownCommand     = errors.New("Unknown command")
)

// MissingEnvError names the first required variable that is unset.
type MissingEnvError struct {
	Name string
}

func (e *MissingEnvError) Error() string {
	return "Missing required environment variable: " + e.Name
}

func (e *MissingEnvError) Is(target error) bool { return target == ErrMissingEnv }

// MissingEnvListError lists every unset variable at once.
type MissingEnvListError struct {
	Names []string
}

func (e *MissingEnvListError) Error() string {
	var b strings.Builder
	b.WriteString("The following required environment variables are not set:")
	for _, n := range e.Names {
		b.WriteString("\n  - ")
		b.WriteString(n)
	}
	b.WriteString("\n\nPlease set these variables in your .env file or environment.")
	return b.String()
}

func (e *MissingEnvListError) Is(target error) bool { return target == ErrMissingEnv }

// CheckEnvironment reports all of names that have no value in env.
func CheckEnvironment(env map[string]string, names ...string) error {
	var missing []string
	for _, n := range names {
		if env[n] == "" {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return &MissingEnvListError{Names: missing}
	}
	return nil
}

// Settings are the resolved inputs of a deploy command.
type Settings struct {
	Project    string
	Location   string
	Bucket     string
	ResourceID string

	// Env holds the app-specific values keyed by variable name.
	Env map[string]string

	// PackageRoot resolves the app's relative extra package paths.
	PackageRoot string
	AgentObject string
}

// SettingsFromConfig seeds settings from the loaded config, which already
// reflects .env files and the environment.
func SettingsFromConfig(cfg *config.Config) Settings {
	env := cfg.Env()
	return Settings{
		Project:  cfg.Cloud.Project,
		Location: cfg.Cloud.Location,
		Bucket:   cfg.Cloud.Bucket,
		Env: map[string]string{
			EnvWeatherKey: env[EnvWeatherKey],
			EnvPlacesKey:  env[EnvPlacesKey],
			EnvScenario:   env[EnvScenario],
		},
	}
}

// Override replaces key with v when v is non-empty. Flags use it to win
// over the environment.
func (s *Settings) Override(key, v string) {
	if v == "" {
		return
	}
	switch key {
	case EnvProject:
		s.Project = v
	case EnvLocation:
		s.Location = v
	case EnvBucket:
		s.Bucket = v
	default:
		if s.Env == nil {
			s.Env = map[string]string{}
		}
		s.Env[key] = v
	}
}

// Validate returns the first missing variable: the cloud settings first,
// then the app's required keys.
func (s Settings) Validate(app *App) error {
	for _, kv := range [][2]string{
		{EnvProject, s.Project},
		{EnvLocation, s.Location},
		{EnvBucket, s.Bucket},
	} {
		if kv[1] == "" {
			return &MissingEnvError{Name: kv[0]}
		}
	}
	for _, k := range app.Required {
		if s.Env[k] == "" {
			return &MissingEnvError{Name: k}
		}
	}
	return nil
}

// PrintSummary writes the settings banner shown before every command.
func (s Settings) PrintSummary(w io.Writer, app *App) {
	fmt.Fprintf(w, "PROJECT: %s\n", s.Project)
	fmt.Fprintf(w, "LOCATION: %s\n", s.Location)
	fmt.Fprintf(w, "BUCKET: %s\n", s.Bucket)
	app.Summary(w, s.Env)
}

// Stager uploads deployment artifacts.
type Stager interface {
	Stage(ctx context.Context, b engine.Bundle) (engine.Artifacts, error)
}

// Deployer runs deploy workflows against one Agent Engine location.
type Deployer struct {
	Client *engine.Client
	Stager Stager
	Out    io.Writer

	// Pause is called between scripted queries. Nil means time.Sleep.
	Pause func(time.Duration)
}

type Op int

const (
	OpNone Op = iota
	OpCreate
	OpDelete
	OpQuickTest
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpDelete:
		return "delete"
	case OpQuickTest:
		return "quicktest"
	}
	return "none"
}

// Run dispatches op for app.
func (d *Deployer) Run(ctx context.Context, op Op, app *App, s Settings) error {
	switch op {
	case OpCreate:
		_, err := d.Create(ctx, app, s)
		return err
	case OpDelete:
		return d.Delete(ctx, s.ResourceID)
	case OpQuickTest:
		return d.QuickTest(ctx, app, s.ResourceID)
	}
	return ErrUnknownCommand
}

// Create stages the app's artifacts and registers a new deployment.
func (d *Deployer) Create(ctx context.Context, app *App, s Settings) (*engine.RemoteAgent, error) {
	env := app.DeployEnv(s.Env)
	fmt.Fprintln(d.Out, formatEnv(env))

	bundle := engine.Bundle{
		DisplayName:  app.DisplayName,
		Requirements: app.Requirements,
		ObjectFile:   s.AgentObject,
	}
	for _, p := range app.ExtraPackages {
		if s.PackageRoot != "" && !filepath.IsAbs(p) {
			p = filepath.Join(s.PackageRoot, p)
		}
		bundle.ExtraPackages = append(bundle.ExtraPackages, p)
	}

	arts, err := d.Stager.Stage(ctx, bundle)
	if err != nil {
		return nil, fmt.Errorf("staging %s: %w", app.Name, err)
	}

	ra, err := d.Client.Create(ctx, engine.CreateSpec{
		DisplayName: app.DisplayName,
		Description: app.Description,
		Artifacts:   arts,
		Env:         env,
	})
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(d.Out, "Created remote agent: %s\n", ra.Name)
	return ra, nil
}

// Delete force-deletes the deployment named by resourceID.
func (d *Deployer) Delete(ctx context.Context, resourceID string) error {
	if resourceID == "" {
		return fmt.Errorf("%w for delete", ErrResourceIDRequired)
	}
	ra, err := d.Client.Get(ctx, resourceID)
	if err != nil {
		return err
	}
	if err := ra.Delete(ctx, true); err != nil {
		return err
	}
	fmt.Fprintf(d.Out, "Deleted remote agent: %s\n", resourceID)
	return nil
}

// QuickTest opens a session with the app's initial state, sends its test
// message and prints every raw event.
func (d *Deployer) QuickTest(ctx context.Context, app *App, resourceID string) error {
	if resourceID == "" {
		return fmt.Errorf("%w for quicktest", ErrResourceIDRequired)
	}
	ra, err := d.Client.Get(ctx, resourceID)
	if err != nil {
		return err
	}
	sess, err := ra.CreateSession(ctx, app.UserID, app.InitialState)
	if err != nil {
		return err
	}

	fmt.Fprintf(d.Out, "Trying remote agent: %s\n", resourceID)
	for ev, err := range ra.StreamQuery(ctx, app.UserID, sess.ID, app.QuickTestMessage) {
		if err != nil {
			return err
		}
		fmt.Fprintln(d.Out, ev.String())
	}
	fmt.Fprintln(d.Out, "Done.")
	return nil
}

// ExampleQueries is the scripted conversation of the example flow.
var ExampleQueries = []string{
	"Hello there!",
	"What's the weather in London?",
	"What about New York?",
	"Thanks, goodbye!",
}

const exampleUserID = "example_user"

// Converse runs queries against a deployed agent, printing the streamed
// text of each reply.
func (d *Deployer) Converse(ctx context.Context, resourceID string, state map[string]any, queries []string) error {
	fmt.Fprintf(d.Out, "\nTesting agent: %s\n", resourceID)

	ra, err := d.Client.Get(ctx, resourceID)
	if err != nil {
		return err
	}
	sess, err := ra.CreateSession(ctx, exampleUserID, state)
	if err != nil {
		return err
	}

	pause := d.Pause
	if pause == nil {
		pause = time.Sleep
	}

	for _, q := range queries {
		fmt.Fprintf(d.Out, "\n>>> User: %s\n", q)
		fmt.Fprint(d.Out, "<<< Agent: ")
		for ev, err := range ra.StreamQuery(ctx, exampleUserID, sess.ID, q) {
			if err != nil {
				return err
			}
			fmt.Fprint(d.Out, ev.Text())
		}
		fmt.Fprintln(d.Out)
		pause(time.Second)
	}

	fmt.Fprintln(d.Out, "\nTest completed successfully!")
	return nil
}

// Example is the end-to-end flow: deploy the weather agent unless
// resourceID names an existing one, converse with it, then ask whether to
// delete it.
func (d *Deployer) Example(ctx context.Context, in io.Reader, s Settings, resourceID string) error {
	app := WeatherApp()

	if resourceID == "" {
		fmt.Fprintf(d.Out, "Deploying Weather Agent to project: %s\n", s.Project)
		fmt.Fprintf(d.Out, "Location: %s\n", s.Location)
		fmt.Fprintf(d.Out, "Bucket: %s\n", s.Bucket)
		fmt.Fprintln(d.Out, "Creating remote agent... (this may take a few minutes)")
		ra, err := d.Create(ctx, app, s)
		if err != nil {
			return err
		}
		resourceID = ra.Name
		fmt.Fprintf(d.Out, "Successfully deployed agent: %s\n", resourceID)
	}

	if err := d.Converse(ctx, resourceID, app.InitialState, ExampleQueries); err != nil {
		return err
	}

	fmt.Fprint(d.Out, "\nDo you want to delete the deployed agent? (y/n): ")
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading answer: %w", err)
	}

	if strings.EqualFold(strings.TrimSpace(answer), "y") {
		fmt.Fprintf(d.Out, "\nDeleting agent: %s\n", resourceID)
		ra, err := d.Client.Get(ctx, resourceID)
		if err != nil {
			return err
		}
		if err := ra.Delete(ctx, true); err != nil {
			return err
		}
		fmt.Fprintln(d.Out, "Agent deleted successfully!")
		return nil
	}

	slog.Info("deploy: keeping agent", "resource", resourceID)
	fmt.Fprintf(d.Out, "\nKeeping agent deployed. Resource name: %s\n", resourceID)
	fmt.Fprintln(d.Out, "You can delete it later using:")
	fmt.Fprintf(d.Out, "agentdeck deploy --app %s --delete --resource_id=%s\n", app.Name, resourceID)
	return nil
}

// formatEnv renders env as {'K': 'V', ...} with sorted keys.
func formatEnv(env map[string]string) string {
	parts := make([]string, 0, len(env))
	for _, k := range sortedKeys(env) {
		parts = append(parts, fmt.Sprintf("'%s': '%s'", k, env[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
