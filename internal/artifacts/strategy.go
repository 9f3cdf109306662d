package artifacts

import "strings"

// File keys understood by the resolver.
const (
	KeyMustReads = "must_reads"
	KeyReport    = "report"
	KeyNew       = "new"
	KeySummaries = "summaries"
)

// Resolution method names, reported to clients.
const (
	MethodDriveFileID   = "drive_file_id"
	MethodDriveOutput   = "drive_output_path"
	MethodFolder        = "smart_folder_traversal"
	MethodLocalFallback = "local_fallback"
)

// keyAlternatives lists the manifest keys that may name each file.
var keyAlternatives = map[string][]string{
	KeyMustReads: {"must_reads", "must_reads_json"},
	KeyReport:    {"report", "report_md"},
	KeyNew:       {"new", "new_csv"},
	KeySummaries: {"summaries", "summaries_json"},
}

var runFilenames = map[string]string{
	KeyMustReads: "must_reads.json",
	KeyReport:    "report.md",
	KeyNew:       "new.csv",
	KeySummaries: "summaries.json",
}

var legacyKeys = map[string]string{
	KeyMustReads: "must_reads_json",
	KeyReport:    "report_md",
	KeyNew:       "new_csv",
	KeySummaries: "summaries_json",
}

func keysFor(fileKey string) []string {
	if alts, ok := keyAlternatives[fileKey]; ok {
		return alts
	}

	return []string{fileKey}
}

// Candidate is one location a strategy proposes for a file.
type Candidate struct {
	Path        string
	ManifestKey string
}

// Strategy proposes locations for a file of a run, in preference order.
type Strategy interface {
	Name() string
	Candidates(fileKey string, run *LatestRun) []Candidate
}

// DefaultStrategies is the resolution order used in production.
func DefaultStrategies() []Strategy {
	return []Strategy{
		driveFileIDStrategy{},
		driveOutputPathStrategy{},
		folderStrategy{},
		localFallbackStrategy{},
	}
}

func fromMap(m map[string]string, fileKey string) []Candidate {
	var out []Candidate

	for _, k := range keysFor(fileKey) {
		if p, ok := m[k]; ok && p != "" {
			out = append(out, Candidate{Path: p, ManifestKey: k})
		}
	}

	return out
}

func firstNonEmptyMap(maps ...map[string]string) map[string]string {
	for _, m := range maps {
		if len(m) > 0 {
			return m
		}
	}

	return nil
}

// driveFileIDStrategy uses drive_file_ids from the pointer, else the manifest.
type driveFileIDStrategy struct{}

func (driveFileIDStrategy) Name() string { return MethodDriveFileID }

func (driveFileIDStrategy) Candidates(fileKey string, run *LatestRun) []Candidate {
	return fromMap(firstNonEmptyMap(run.Pointer.DriveFileIDs, run.Manifest.DriveFileIDs), fileKey)
}

// driveOutputPathStrategy uses drive_output_paths from the pointer, else the manifest.
type driveOutputPathStrategy struct{}

func (driveOutputPathStrategy) Name() string { return MethodDriveOutput }

func (driveOutputPathStrategy) Candidates(fileKey string, run *LatestRun) []Candidate {
	return fromMap(firstNonEmptyMap(run.Pointer.DriveOutputPaths, run.Manifest.DriveOutputPaths), fileKey)
}

// folderStrategy looks in <Mode>/<run_id>/<filename>.
type folderStrategy struct{}

func (folderStrategy) Name() string { return MethodFolder }

func (folderStrategy) Candidates(fileKey string, run *LatestRun) []Candidate {
	name, ok := runFilenames[fileKey]
	if !ok {
		return nil
	}

	return []Candidate{{Path: ModeFolder(run.Mode) + "/" + run.RunID + "/" + name}}
}

// localFallbackStrategy maps the pipeline's local output paths into the
// store by dropping the leading data/ directory.
type localFallbackStrategy struct{}

func (localFallbackStrategy) Name() string { return MethodLocalFallback }

func (localFallbackStrategy) Candidates(fileKey string, run *LatestRun) []Candidate {
	key, ok := legacyKeys[fileKey]
	if !ok {
		key = fileKey
	}

	p, ok := run.Manifest.LegacyPaths()[key]
	if !ok || p == "" {
		return nil
	}

	return []Candidate{{Path: strings.TrimPrefix(p, "data/"), ManifestKey: key}}
}
