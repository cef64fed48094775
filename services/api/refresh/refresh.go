// Package refresh rebuilds the modeled tables next to the serving directory and
// swaps them into place with two renames.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	connconfig "github.com/02loveslollipop/nuclear-outages/services/connector/config"
	"github.com/02loveslollipop/nuclear-outages/services/connector/eia"
	"github.com/02loveslollipop/nuclear-outages/services/connector/runner"
	"github.com/02loveslollipop/nuclear-outages/services/modeler/schema"
	"github.com/02loveslollipop/nuclear-outages/services/modeler/tables"
)

// ErrInProgress is returned when another refresh is already running.
var ErrInProgress = errors.New("a refresh is already in progress")

// DomainError wraps failures caused by configuration or upstream data rather
// than by this process, such as a missing API key or an empty crawl.
type DomainError struct {
	Err error
}

func (e *DomainError) Error() string { return e.Err.Error() }

func (e *DomainError) Unwrap() error { return e.Err }

// SwapError reports a failed directory replacement. RolledBack is true when
// the previous serving directory was restored.
type SwapError struct {
	Op         string
	RolledBack bool
	Err        error
}

func (e *SwapError) Error() string {
	if e.RolledBack {
		return fmt.Sprintf("swap %s failed (previous data restored): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("swap %s failed: %v", e.Op, e.Err)
}

func (e *SwapError) Unwrap() error { return e.Err }

// ExtractFunc writes a fresh raw dataset to rawPath.
type ExtractFunc func(ctx context.Context, rawPath string) error

// BuildFunc models rawPath into outDir.
type BuildFunc func(rawPath, outDir string) (tables.Tables, error)

// Swapper runs a directory replacement while readers are held off.
type Swapper interface {
	Swap(fn func() error) error
}

// Publisher mirrors freshly swapped tables somewhere else.
type Publisher interface {
	Publish(ctx context.Context, t tables.Tables) error
	Counts(ctx context.Context) (tables.Counts, error)
}

// ConnectorExtract runs the connector described by cfg with its output forced
// to the requested raw path.
func ConnectorExtract(cfg connconfig.Config) ExtractFunc {
	return func(ctx context.Context, rawPath string) error {
		c := cfg
		c.OutputFile = rawPath
		_, err := runner.Extract(ctx, c)
		return err
	}
}

// Preview holds the first rows of each staged table.
type Preview struct {
	Head       int                 `json:"head"`
	DimPlant   []tables.DimPlant   `json:"dim_plant"`
	DimDate    []tables.DimDate    `json:"dim_date"`
	FactOutage []tables.FactOutage `json:"fact_outage"`
}

// Warehouse reports the outcome of the optional mirror step.
type Warehouse struct {
	Status string         `json:"status"`
	Error  string         `json:"error,omitempty"`
	Counts *tables.Counts `json:"counts,omitempty"`
}

// Payload is the result of a refresh.
type Payload struct {
	Status     string `json:"status"`
	RawPath    string `json:"raw_path"`
	ModeledDir string `json:"modeled_dir"`
	tables.Counts
	Preview   *Preview   `json:"preview,omitempty"`
	Warehouse *Warehouse `json:"warehouse,omitempty"`
}

// Options tunes a single refresh.
type Options struct {
	Preview bool
	Head    int
}

// Orchestrator runs extraction and modeling, then swaps the result in.
type Orchestrator struct {
	rawPath    string
	modeledDir string
	extract    ExtractFunc
	build      BuildFunc
	publisher  Publisher

	running sync.Mutex
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithBuild replaces the modeling step.
func WithBuild(fn BuildFunc) Option {
	return func(o *Orchestrator) { o.build = fn }
}

// WithPublisher mirrors tables after each successful swap.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// New returns an orchestrator for the given raw file and serving directory.
func New(rawPath, modeledDir string, extract ExtractFunc, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		rawPath:    rawPath,
		modeledDir: modeledDir,
		extract:    extract,
		build:      schema.Rebuild,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Refresh stages a new modeled directory and swaps it in through target. Only
// one refresh runs at a time; a concurrent call gets ErrInProgress. The work
// is not cancelled if ctx is.
func (o *Orchestrator) Refresh(ctx context.Context, target Swapper, opts Options) (Payload, error) {
	if !o.running.TryLock() {
		return Payload{}, ErrInProgress
	}
	defer o.running.Unlock()
	ctx = context.WithoutCancel(ctx)

	staging, payload, t, err := o.BuildStaging(ctx, opts)
	if err != nil {
		return Payload{}, err
	}

	err = target.Swap(func() error {
		return AtomicReplace(staging, o.modeledDir)
	})
	if err != nil {
		_ = os.RemoveAll(staging)
		return Payload{}, err
	}
	log.Printf("refresh swapped %s into %s", staging, o.modeledDir)

	if o.publisher != nil {
		payload.Warehouse = o.publish(ctx, t)
	}
	return payload, nil
}

// publish mirrors t and reads back the mirrored row counts.
func (o *Orchestrator) publish(ctx context.Context, t tables.Tables) *Warehouse {
	if err := o.publisher.Publish(ctx, t); err != nil {
		log.Printf("warehouse publish failed: %v", err)
		return &Warehouse{Status: "error", Error: err.Error()}
	}
	counts, err := o.publisher.Counts(ctx)
	if err != nil {
		log.Printf("warehouse count failed: %v", err)
		return &Warehouse{Status: "error", Error: fmt.Sprintf("count mirrored rows: %v", err)}
	}
	if counts != t.Counts() {
		log.Printf("warehouse holds %+v, expected %+v", counts, t.Counts())
		return &Warehouse{Status: "error", Error: "mirrored row counts do not match", Counts: &counts}
	}
	return &Warehouse{Status: "ok", Counts: &counts}
}

// BuildStaging extracts into the raw path and models it into a new sibling of
// the serving directory. The staging directory is removed on any failure.
func (o *Orchestrator) BuildStaging(ctx context.Context, opts Options) (string, Payload, tables.Tables, error) {
	if err := o.extract(ctx, o.rawPath); err != nil {
		return "", Payload{}, tables.Tables{}, classify(err)
	}

	staging, err := siblingPath(o.modeledDir, "tmp")
	if err != nil {
		return "", Payload{}, tables.Tables{}, err
	}
	t, err := o.build(o.rawPath, staging)
	if err != nil {
		_ = os.RemoveAll(staging)
		return "", Payload{}, tables.Tables{}, err
	}

	payload := Payload{
		Status:     "ok",
		RawPath:    o.rawPath,
		ModeledDir: o.modeledDir,
		Counts:     t.Counts(),
	}
	if opts.Preview {
		head := t.Head(opts.Head)
		payload.Preview = &Preview{
			Head:       opts.Head,
			DimPlant:   head.Plants,
			DimDate:    head.Dates,
			FactOutage: head.Facts,
		}
	}
	return staging, payload, t, nil
}

func classify(err error) error {
	var authErr *eia.AuthError
	switch {
	case errors.As(err, &authErr):
		return &DomainError{Err: fmt.Errorf("EIA_API_KEY missing or invalid: %w", err)}
	case errors.Is(err, runner.ErrEmptyDataset):
		return &DomainError{Err: err}
	default:
		return err
	}
}

// renameDir is swapped out in tests to simulate a failed rename.
var renameDir = os.Rename

// AtomicReplace moves src into dst's place. Both must share a parent
// directory. An existing dst is first renamed to a backup; if installing src
// then fails the backup is renamed back. The backup is removed on success.
func AtomicReplace(src, dst string) error {
	src, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	dst, err = filepath.Abs(dst)
	if err != nil {
		return err
	}
	if filepath.Dir(src) != filepath.Dir(dst) {
		return fmt.Errorf("staging dir %s must share a parent with %s", src, dst)
	}

	backup, err := siblingPath(dst, "bak")
	if err != nil {
		return err
	}

	hadDst := true
	if _, err := os.Stat(dst); errors.Is(err, fs.ErrNotExist) {
		hadDst = false
	}

	if hadDst {
		if err := renameDir(dst, backup); err != nil {
			return &SwapError{Op: "backup", Err: err}
		}
	}
	if err := renameDir(src, dst); err != nil {
		if !hadDst {
			return &SwapError{Op: "install", Err: err}
		}
		if rbErr := renameDir(backup, dst); rbErr != nil {
			return &SwapError{Op: "install", Err: errors.Join(err, fmt.Errorf("rollback: %w", rbErr))}
		}
		return &SwapError{Op: "install", RolledBack: true, Err: err}
	}

	if hadDst {
		if err := os.RemoveAll(backup); err != nil {
			log.Printf("failed to remove backup %s: %v", backup, err)
		}
	}
	return nil
}

// siblingPath returns ".{name}.{tag}-<32 hex>" next to dir.
func siblingPath(dir, tag string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return filepath.Join(filepath.Dir(abs), "."+filepath.Base(abs)+"."+tag+"-"+id), nil
}
