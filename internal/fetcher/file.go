package fetcher

import (
	"context"
	"os"
)

// FileFetcher reads previously captured roster and job window documents from
// disk. The window size is ignored: the file holds whatever was captured.
type FileFetcher struct {
	RosterPath string
	JobsPath   string
}

// NewFileFetcher creates a FileFetcher.
func NewFileFetcher(rosterPath, jobsPath string) *FileFetcher {
	return &FileFetcher{RosterPath: rosterPath, JobsPath: jobsPath}
}

// Roster reads and decodes the roster file.
func (f *FileFetcher) Roster(ctx context.Context) (Roster, error) {
	data, err := f.read(ctx, "roster", f.RosterPath)
	if err != nil {
		return nil, err
	}
	roster, err := DecodeRoster(data)
	if err != nil {
		return nil, &FetchError{Op: "roster", URL: f.RosterPath, Err: err}
	}
	return roster, nil
}

// Jobs reads and decodes the job window file.
func (f *FileFetcher) Jobs(ctx context.Context, _ int) (JobWindow, error) {
	data, err := f.read(ctx, "jobs", f.JobsPath)
	if err != nil {
		return nil, err
	}
	window, err := DecodeJobWindow(data)
	if err != nil {
		return nil, &FetchError{Op: "jobs", URL: f.JobsPath, Err: err}
	}
	return window, nil
}

func (f *FileFetcher) read(ctx context.Context, op, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Op: op, URL: path, Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FetchError{Op: op, URL: path, Err: err}
	}
	return data, nil
}
