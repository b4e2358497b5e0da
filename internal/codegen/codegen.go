// Package codegen implements the sequential build orchestrator that
// turns one donor device into a complete output tree: resolve input,
// validate the donor profile, build a render context, resolve the target
// board, plan the output file list, render every file into a staging
// directory, cross-check the render against the source identity, and
// finally commit the staging directory atomically (or discard it on any
// failure along the way).
package codegen

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pcileech-tools/donorgen/internal/behavior"
	"github.com/pcileech-tools/donorgen/internal/board"
	"github.com/pcileech-tools/donorgen/internal/errs"
	"github.com/pcileech-tools/donorgen/internal/pciconfig"
	"github.com/pcileech-tools/donorgen/internal/profile"
	"github.com/pcileech-tools/donorgen/internal/render"
	"github.com/pcileech-tools/donorgen/internal/sysfs"
)

// Request is the fully-resolved input to one build, assembled by
// cmd/donorgen from CLI flags. BDF and DonorInfoFile are mutually exclusive:
// exactly one of them supplies the DonorProfile, either by live extraction
// (BDF) or by deserializing a prerecorded profile document (DonorInfoFile).
type Request struct {
	BDF              pciconfig.BDF
	DonorInfoFile    string // path to a prerecorded donor profile document; "" = extract live via BDF
	BoardName        string
	OutputDir        string
	ProfileDuration  time.Duration
	EnableVariance   bool
	DonorTemplate    string // path to a donor-template override file; "" = none
	GeneratorVersion string
	Jobs, Timeout    int
}

// Result reports what a build produced.
type Result struct {
	OutputDir    string
	FilesWritten []string
	Profile      *profile.DonorProfile
}

// Build runs the eight-stage pipeline against reader (sysfs access) and the
// board catalog, writing the final tree to req.OutputDir only once every
// stage has succeeded.
func Build(reader *sysfs.Reader, req Request) (*Result, error) {
	// Stage 1: resolve input / extract donor profile.
	donorProfile, err := resolveInput(reader, req)
	if err != nil {
		return nil, err
	}

	// Stage 2: validate profile.
	if err := donorProfile.Validate(); err != nil {
		return nil, err
	}

	if req.ProfileDuration > 0 && req.DonorInfoFile == "" {
		sampler := behavior.NewSampler(reader, req.ProfileDuration/100)
		class := behavior.DeviceClassForIdentity(donorProfile.Identity.ClassCode)
		donorProfile.Behavior = sampler.Sample(context.Background(), req.BDF, 0, req.ProfileDuration, class)
	}

	// Stage 4: resolve board (before context, since context needs it).
	b, err := board.Find(req.BoardName)
	if err != nil {
		return nil, errs.Wrap(errs.InputError, "resolving target board", err)
	}

	// Stage 3: build render context.
	ctx, err := render.BuildContext(donorProfile, b, render.Options{EnableVariance: req.EnableVariance})
	if err != nil {
		return nil, err
	}

	// Stage 5 + 6: plan output file list and render to a staging directory.
	renderer := render.NewRenderer(req.Jobs, req.Timeout)
	files, err := renderer.RenderAll(ctx)
	if err != nil {
		return nil, err
	}

	stagingDir, err := os.MkdirTemp(filepath.Dir(req.OutputDir), ".donorgen-staging-*")
	if err != nil {
		return nil, errs.Wrap(errs.IoError, "creating staging directory", err)
	}
	defer os.RemoveAll(stagingDir)

	written, err := writeStagingFiles(stagingDir, files)
	if err != nil {
		return nil, err
	}

	if err := writeDonorInfoJSON(stagingDir, donorProfile); err != nil {
		return nil, err
	}
	written = append(written, "donor_info.json")

	// Stage 7: cross-check anchor constants.
	if err := crossCheckAnchors(ctx, files); err != nil {
		return nil, err
	}

	// Stage 8: atomic commit.
	if err := commit(stagingDir, req.OutputDir); err != nil {
		return nil, err
	}

	return &Result{OutputDir: req.OutputDir, FilesWritten: written, Profile: donorProfile}, nil
}

// resolveInput produces the DonorProfile a build starts from: a live sysfs
// extraction keyed on req.BDF, or a prerecorded profile document when
// req.DonorInfoFile substitutes for live extraction entirely. Either way, a
// donor-template override (if given) is then layered on top.
func resolveInput(reader *sysfs.Reader, req Request) (*profile.DonorProfile, error) {
	var p *profile.DonorProfile
	var err error
	if req.DonorInfoFile != "" {
		p, err = profile.LoadFile(req.DonorInfoFile)
	} else {
		p, err = profile.FromExtraction(reader, req.BDF, req.GeneratorVersion)
	}
	if err != nil {
		return nil, err
	}
	if req.DonorTemplate != "" {
		merged, err := profile.LoadOverride(req.DonorTemplate, p)
		if err != nil {
			return nil, err
		}
		p = merged
	}
	return p, nil
}

func writeStagingFiles(stagingDir string, files []render.OutputFile) ([]string, error) {
	written := make([]string, 0, len(files))
	for _, f := range files {
		dest := filepath.Join(stagingDir, f.RelPath)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, errs.Wrap(errs.IoError, "creating output subdirectory", err)
		}
		if err := os.WriteFile(dest, f.Content, 0o644); err != nil {
			return nil, errs.Wrap(errs.IoError, "writing "+f.RelPath, err)
		}
		written = append(written, f.RelPath)
	}
	return written, nil
}

func writeDonorInfoJSON(stagingDir string, p *profile.DonorProfile) error {
	data, err := profile.MarshalSchema(p)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(stagingDir, "donor_info.json"), data, 0o644)
}

// crossCheckAnchors searches the rendered HW.device_config output for each
// device.* identity field of the context, written as the sized hex literal
// the template emits (16'h..., 8'h..., 24'h...), and reports
// CodegenInconsistency for the first one that is missing.
func crossCheckAnchors(ctx *render.Context, files []render.OutputFile) error {
	var deviceConfig []byte
	for _, f := range files {
		if f.FamilyID == "HW.device_config" {
			deviceConfig = f.Content
			break
		}
	}
	if deviceConfig == nil {
		return errs.New(errs.CodegenInconsistency, "HW.device_config was not produced by the renderer")
	}

	anchors := map[string]string{
		"16'h" + ctx.String("device.vendor_id"):        "device.vendor_id",
		"16'h" + ctx.String("device.device_id"):        "device.device_id",
		"8'h" + ctx.String("device.revision_id"):       "device.revision_id",
		"24'h" + ctx.String("device.class_code"):       "device.class_code",
	}
	content := string(deviceConfig)
	for anchor, key := range anchors {
		if !strings.Contains(content, anchor) {
			return errs.WithKey(errs.CodegenInconsistency, "rendered identity constant does not match render context", key)
		}
	}
	return nil
}

// commit atomically publishes stagingDir as outputDir. If outputDir already
// exists it is first moved aside and removed only after the rename of the
// new tree succeeds; if that rename fails, the old tree is moved back.
func commit(stagingDir, outputDir string) error {
	backup := ""
	if _, err := os.Stat(outputDir); err == nil {
		backup = outputDir + ".bak." + strconv.FormatInt(time.Now().UnixNano(), 10)
		if err := os.Rename(outputDir, backup); err != nil {
			return errs.Wrap(errs.IoError, "moving aside existing output directory", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(outputDir), 0o755); err != nil {
		return errs.Wrap(errs.IoError, "creating output parent directory", err)
	}
	if err := os.Rename(stagingDir, outputDir); err != nil {
		if backup != "" {
			os.Rename(backup, outputDir)
		}
		return errs.Wrap(errs.IoError, "committing staged output tree", err)
	}
	if backup != "" {
		os.RemoveAll(backup)
	}
	return nil
}
