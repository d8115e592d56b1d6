package imageprocessor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"imdirdiff/logging"
	"imdirdiff/types"
	"imdirdiff/utils"
)

// flipMeanPattern is the whole grammar understood from flip's stdout:
// "Mean: <decimal>" anywhere in the text, first match wins.
var flipMeanPattern = regexp.MustCompile(`Mean: ([\d.]+)`)

// FlipParseError describes stdout that does not carry a usable mean
type FlipParseError struct {
	Reason string
	Output string
}

func (e *FlipParseError) Error() string {
	return fmt.Sprintf("%s: %s", ErrFlipOutput.Error(), e.Reason)
}

func (e *FlipParseError) Unwrap() error {
	return ErrFlipOutput
}

// ParseFlipMean extracts the mean error from flip's stdout
func ParseFlipMean(stdout string) (float64, error) {
	m := flipMeanPattern.FindStringSubmatch(stdout)
	if m == nil {
		return 0, &FlipParseError{Reason: "no \"Mean:\" value found", Output: stdout}
	}

	mean, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, &FlipParseError{Reason: fmt.Sprintf("mean %q is not a number", m[1]), Output: stdout}
	}
	return mean, nil
}

// FlipScore turns flip's mean error into a similarity. flip documents no
// upper bound for the mean, so the result is clamped to [0,1].
func FlipScore(mean float64) float64 {
	return clamp01(1 - mean)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Flip runs NVIDIA's flip (https://github.com/NVlabs/flip) as a subprocess
type Flip struct {
	Executable string
}

// NewFlip creates the external comparator; an empty name means "flip" on PATH
func NewFlip(executable string) *Flip {
	if executable == "" {
		executable = "flip"
	}
	return &Flip{Executable: executable}
}

func (f *Flip) Name() string { return "flip" }

// Compare runs flip on the pair and reads back its score and diff image
func (f *Flip) Compare(ctx context.Context, pair ImagePair) (*types.ComparisonOutcome, error) {
	bin, err := exec.LookPath(f.Executable)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFlipSpawn, err)
	}

	stem := utils.FileStem(string(pair.Rel))
	cmd := exec.CommandContext(ctx, bin,
		"-r", pair.PathA,
		"-t", pair.PathB,
		"-d", pair.DiffDir,
		"-b", stem,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("%w: %w", ErrFlipSpawn, runErr)
		}
		// A non-zero exit still counts if flip printed its statistics.
		logging.LogWarning("flip exited with an error", "path", string(pair.Rel),
			"error", runErr.Error(), "stderr", strings.TrimSpace(stderr.String()))
	}

	if !utf8.Valid(stdout.Bytes()) {
		return nil, &FlipParseError{Reason: "output is not valid UTF-8"}
	}

	mean, err := ParseFlipMean(stdout.String())
	if err != nil {
		if runErr != nil {
			return nil, fmt.Errorf("%w (flip: %v)", err, runErr)
		}
		return nil, err
	}
	if mean > 1 {
		logging.LogWarning("flip mean above 1, clamping score to 0", "path", string(pair.Rel), "mean", mean)
	}

	diffFile, err := locateFlipDiff(pair.DiffDir, string(pair.Rel))
	if err != nil {
		return nil, err
	}
	diffFile, err = claimFlipDiff(diffFile, string(pair.Rel))
	if err != nil {
		return nil, err
	}

	return &types.ComparisonOutcome{Score: FlipScore(mean), DiffFile: diffFile}, nil
}

// locateFlipDiff finds the image flip wrote: <stem>.png, or a file named
// like the source for builds that keep the extension.
func locateFlipDiff(diffDir, rel string) (string, error) {
	candidates := []string{
		filepath.Join(diffDir, utils.FileStem(rel)+".png"),
		filepath.Join(diffDir, filepath.Base(rel)),
	}

	for _, c := range candidates {
		info, err := os.Stat(c)
		if err == nil && info.Mode().IsRegular() && info.Size() > 0 {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: looked for %s", ErrFlipDiffMissing, strings.Join(candidates, ", "))
}

// claimFlipDiff renames <stem>.png to <name>.png when the source is not a
// png, so x.png and x.jpg in one directory keep separate diffs.
func claimFlipDiff(found, rel string) (string, error) {
	base := filepath.Base(rel)
	if strings.EqualFold(filepath.Ext(base), ".png") ||
		filepath.Base(found) != utils.FileStem(rel)+".png" {
		return found, nil
	}

	target := filepath.Join(filepath.Dir(found), base+".png")
	if err := os.Rename(found, target); err != nil {
		return "", fmt.Errorf("%w: %w", ErrFlipDiffMissing, err)
	}
	return target, nil
}
