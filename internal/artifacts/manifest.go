package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/lueurxax/acitrack/internal/core/domain"
	apperrors "github.com/lueurxax/acitrack/internal/core/errors"
)

const (
	manifestsFolder = "Manifests"
	latestFile      = "latest.json"
)

// LatestPointer is Manifests/<Mode>/latest.json.
type LatestPointer struct {
	RunID               string            `json:"run_id"`
	DriveManifestFileID string            `json:"drive_manifest_file_id,omitempty"`
	DriveManifestPath   string            `json:"drive_manifest_path,omitempty"`
	DriveFileIDs        map[string]string `json:"drive_file_ids,omitempty"`
	DriveOutputPaths    map[string]string `json:"drive_output_paths,omitempty"`
}

// Manifest holds the location fields of a run manifest plus the raw document
// for pass-through.
type Manifest struct {
	RunID            string
	DriveFileIDs     map[string]string
	DriveOutputPaths map[string]string
	OutputPaths      map[string]string
	LocalOutputPaths map[string]string
	Raw              map[string]json.RawMessage
}

type manifestFields struct {
	RunID            string            `json:"run_id"`
	DriveFileIDs     map[string]string `json:"drive_file_ids"`
	DriveOutputPaths map[string]string `json:"drive_output_paths"`
	OutputPaths      map[string]string `json:"output_paths"`
	LocalOutputPaths map[string]string `json:"local_output_paths"`
}

// UnmarshalJSON keeps both the typed fields and the raw object.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var f manifestFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}

	*m = Manifest{
		RunID:            f.RunID,
		DriveFileIDs:     f.DriveFileIDs,
		DriveOutputPaths: f.DriveOutputPaths,
		OutputPaths:      f.OutputPaths,
		LocalOutputPaths: f.LocalOutputPaths,
		Raw:              raw,
	}

	return nil
}

// MarshalJSON writes the raw document back unchanged.
func (m Manifest) MarshalJSON() ([]byte, error) {
	if m.Raw == nil {
		return json.Marshal(manifestFields{
			RunID:            m.RunID,
			DriveFileIDs:     m.DriveFileIDs,
			DriveOutputPaths: m.DriveOutputPaths,
			OutputPaths:      m.OutputPaths,
			LocalOutputPaths: m.LocalOutputPaths,
		})
	}

	return json.Marshal(m.Raw)
}

// LegacyPaths returns output_paths, or local_output_paths when absent.
func (m *Manifest) LegacyPaths() map[string]string {
	if len(m.OutputPaths) > 0 {
		return m.OutputPaths
	}

	return m.LocalOutputPaths
}

// Warnings lists the location fields a manifest lacks.
func (m *Manifest) Warnings() []string {
	var w []string

	if len(m.DriveFileIDs) == 0 {
		w = append(w, "Missing 'drive_file_ids' - backend will use slower folder traversal")
	}

	if len(m.DriveOutputPaths) == 0 {
		w = append(w, "Missing 'drive_output_paths' - backend will use slower folder traversal")
	}

	if len(m.LegacyPaths()) == 0 {
		w = append(w, "Missing 'output_paths' and 'local_output_paths' - no legacy fallback available")
	}

	return w
}

// LatestRun is the resolved latest run for a mode.
type LatestRun struct {
	RunID    string
	Mode     string
	Manifest Manifest
	Pointer  LatestPointer
}

// ModeFolder capitalises a mode for folder names: daily -> Daily.
func ModeFolder(mode string) string {
	return cases.Title(language.English).String(mode)
}

// ValidateMode accepts daily and weekly.
func ValidateMode(mode string) error {
	if mode != domain.ModeDaily && mode != domain.ModeWeekly {
		return fmt.Errorf("invalid mode '%s'. Must be 'daily' or 'weekly': %w", mode, apperrors.ErrValidation)
	}

	return nil
}

// LoadLatestRun reads the latest pointer for mode and then the run manifest,
// trying drive_manifest_file_id, drive_manifest_path and finally
// Manifests/<Mode>/<run_id>.json.
func (r *Resolver) LoadLatestRun(ctx context.Context, mode string) (*LatestRun, error) {
	if err := ValidateMode(mode); err != nil {
		return nil, err
	}

	folder := manifestsFolder + "/" + ModeFolder(mode)

	data, err := r.store.Get(ctx, folder+"/"+latestFile)
	if err != nil {
		return nil, r.unavailable(fmt.Sprintf("no latest pointer for mode=%s", mode), err)
	}

	var pointer LatestPointer
	if err := json.Unmarshal(data, &pointer); err != nil {
		return nil, r.unavailable(fmt.Sprintf("invalid JSON in latest.json for mode=%s", mode), err)
	}

	if pointer.RunID == "" {
		return nil, fmt.Errorf("invalid latest.json for mode=%s: missing run_id: %w", mode, ErrArtifactUnavailable)
	}

	log := r.logger.With().Str(logFieldMode, mode).Str(logFieldRunID, pointer.RunID).Logger()

	candidates := []struct{ method, path string }{
		{"drive_manifest_file_id", pointer.DriveManifestFileID},
		{"drive_manifest_path", pointer.DriveManifestPath},
		{"manifest_folder", folder + "/" + pointer.RunID + ".json"},
	}

	var content []byte

	for _, c := range candidates {
		if c.path == "" {
			continue
		}

		content, err = r.store.Get(ctx, c.path)
		if err == nil {
			log.Debug().Str("method", c.method).Str("path", c.path).Msg("loaded manifest")
			break
		}

		log.Warn().Err(err).Str("method", c.method).Str("path", c.path).Msg("manifest lookup failed")
	}

	if content == nil {
		return nil, r.unavailable(fmt.Sprintf("manifest file not found: %s/%s.json", folder, pointer.RunID), err)
	}

	var manifest Manifest
	if err := json.Unmarshal(content, &manifest); err != nil {
		return nil, r.unavailable(fmt.Sprintf("invalid JSON in manifest for mode=%s", mode), err)
	}

	return &LatestRun{RunID: pointer.RunID, Mode: mode, Manifest: manifest, Pointer: pointer}, nil
}

func (r *Resolver) unavailable(msg string, cause error) error {
	if cause != nil && !errors.Is(cause, ErrArtifactNotFound) {
		return fmt.Errorf("%s: %w: %w", msg, ErrArtifactUnavailable, cause)
	}

	return fmt.Errorf("%s: %w", msg, ErrArtifactUnavailable)
}
