package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	aiplatform "google.golang.org/api/aiplatform/v1"
)

const (
	DefaultPythonVersion  = "3.12"
	DefaultAgentFramework = "google-adk"
)

// CreateSpec describes a deployment. The artifact URIs come from Stager.
type CreateSpec struct {
	DisplayName    string
	Description    string
	Artifacts      Artifacts
	Env            map[string]string
	PythonVersion  string
	AgentFramework string
}

func (s CreateSpec) reasoningEngine() *aiplatform.GoogleCloudAiplatformV1ReasoningEngine {
	py := s.PythonVersion
	if py == "" {
		py = DefaultPythonVersion
	}
	framework := s.AgentFramework
	if framework == "" {
		framework = DefaultAgentFramework
	}

	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]*aiplatform.GoogleCloudAiplatformV1EnvVar, 0, len(keys))
	for _, k := range keys {
		env = append(env, &aiplatform.GoogleCloudAiplatformV1EnvVar{Name: k, Value: s.Env[k]})
	}

	spec := &aiplatform.GoogleCloudAiplatformV1ReasoningEngineSpec{
		AgentFramework: framework,
		PackageSpec: &aiplatform.GoogleCloudAiplatformV1ReasoningEngineSpecPackageSpec{
			PickleObjectGcsUri:    s.Artifacts.ObjectURI,
			RequirementsGcsUri:    s.Artifacts.RequirementsURI,
			DependencyFilesGcsUri: s.Artifacts.DependenciesURI,
			PythonVersion:         py,
		},
	}
	if len(env) > 0 {
		spec.DeploymentSpec = &aiplatform.GoogleCloudAiplatformV1ReasoningEngineSpecDeploymentSpec{Env: env}
	}

	return &aiplatform.GoogleCloudAiplatformV1ReasoningEngine{
		DisplayName: s.DisplayName,
		Description: s.Description,
		Spec:        spec,
	}
}

// Create registers a new reasoning engine and waits for the operation.
func (c *Client) Create(ctx context.Context, spec CreateSpec) (_ *RemoteAgent, err error) {
	ctx, span := c.startSpan(ctx, "engine.create", attribute.String("engine.display_name", spec.DisplayName))
	defer func() { endSpan(span, err) }()

	slog.Info("engine: creating agent", "display_name", spec.DisplayName, "env_vars", len(spec.Env))

	op, err := c.svc.Projects.Locations.ReasoningEngines.Create(c.parent(), spec.reasoningEngine()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("creating agent %s: %w", spec.DisplayName, err)
	}
	raw, err := c.wait(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("creating agent %s: %w", spec.DisplayName, err)
	}

	var re aiplatform.GoogleCloudAiplatformV1ReasoningEngine
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &re); err != nil {
			return nil, fmt.Errorf("decoding created agent: %w", err)
		}
	}
	if re.Name == "" {
		re.Name = resourceFromOperation(op.Name)
	}
	if re.DisplayName == "" {
		re.DisplayName = spec.DisplayName
	}

	slog.Info("engine: created agent", "name", re.Name)
	return c.remote(&re), nil
}

// resourceFromOperation strips the "/operations/<id>" suffix.
func resourceFromOperation(opName string) string {
	if i := strings.Index(opName, "/operations/"); i >= 0 {
		return opName[:i]
	}
	return opName
}
