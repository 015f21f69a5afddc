package engine

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

const (
	requirementsObject = "requirements.txt"
	dependenciesObject = "dependencies.tar.gz"
	agentObject        = "agent_engine.pkl"
)

// Artifacts are the staged gs:// URIs a deployment points at.
type Artifacts struct {
	RequirementsURI string
	DependenciesURI string
	ObjectURI       string
}

// Bundle is what gets staged for one deployment.
type Bundle struct {
	DisplayName   string
	Requirements  []string
	ExtraPackages []string // local directories, archived with their base name
	ObjectFile    string   // optional serialized agent object
}

// Stager uploads deployment artifacts to gs://<bucket>/<display-name>/.
type Stager struct {
	svc    *storage.Service
	bucket string
}

// NewStager creates a stager sharing c's authenticated HTTP client. Extra
// options (e.g. option.WithEndpoint in tests) are passed to the storage
// client.
func NewStager(ctx context.Context, c *Client, bucket string, opts ...option.ClientOption) (*Stager, error) {
	bucket = strings.TrimPrefix(bucket, "gs://")
	if bucket == "" {
		return nil, fmt.Errorf("stager: bucket is required")
	}
	opts = append([]option.ClientOption{option.WithHTTPClient(c.HTTPClient())}, opts...)
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("stager: creating storage service: %w", err)
	}
	return &Stager{svc: svc, bucket: bucket}, nil
}

// Stage uploads the bundle's artifacts concurrently.
func (s *Stager) Stage(ctx context.Context, b Bundle) (Artifacts, error) {
	prefix := stagingPrefix(b.DisplayName)
	var out Artifacts

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		body := strings.Join(b.Requirements, "\n") + "\n"
		uri, err := s.upload(ctx, path.Join(prefix, requirementsObject), strings.NewReader(body))
		out.RequirementsURI = uri
		return err
	})

	if len(b.ExtraPackages) > 0 {
		g.Go(func() error {
			var buf bytes.Buffer
			if err := WriteTarball(&buf, b.ExtraPackages); err != nil {
				return err
			}
			uri, err := s.upload(ctx, path.Join(prefix, dependenciesObject), &buf)
			out.DependenciesURI = uri
			return err
		})
	}

	if b.ObjectFile != "" {
		g.Go(func() error {
			f, err := os.Open(b.ObjectFile)
			if err != nil {
				return fmt.Errorf("opening agent object: %w", err)
			}
			defer f.Close()
			uri, err := s.upload(ctx, path.Join(prefix, agentObject), f)
			out.ObjectURI = uri
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return Artifacts{}, err
	}
	return out, nil
}

func (s *Stager) upload(ctx context.Context, name string, r io.Reader) (string, error) {
	obj, err := s.svc.Objects.Insert(s.bucket, &storage.Object{Name: name}).Media(r).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("uploading gs://%s/%s: %w", s.bucket, name, err)
	}
	uri := fmt.Sprintf("gs://%s/%s", s.bucket, obj.Name)
	slog.Info("engine: staged artifact", "uri", uri, "bytes", obj.Size)
	return uri, nil
}

// stagingPrefix turns a display name into an object prefix.
func stagingPrefix(displayName string) string {
	p := strings.ToLower(strings.TrimSpace(displayName))
	p = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, p)
	if p == "" {
		return "agent"
	}
	return p
}

// WriteTarball writes a gzip tar of dirs to w. Each directory is stored
// under its base name; Python bytecode caches are skipped.
func WriteTarball(w io.Writer, dirs []string) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	for _, dir := range dirs {
		root := filepath.Clean(dir)
		base := filepath.Base(root)
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && d.Name() == "__pycache__" {
				return fs.SkipDir
			}
			if strings.HasSuffix(d.Name(), ".pyc") {
				return nil
			}

			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			name := filepath.ToSlash(filepath.Join(base, rel))

			info, err := d.Info()
			if err != nil {
				return err
			}
			hdr, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			hdr.Name = name
			if d.IsDir() {
				hdr.Name += "/"
			}
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			f, err := os.Open(p)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(tw, f)
			return err
		})
		if err != nil {
			return fmt.Errorf("archiving %s: %w", dir, err)
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}
