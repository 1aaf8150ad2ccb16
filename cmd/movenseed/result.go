package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/yuya-takeyama/movenseed/pkg/postwork"
)

// SyncResult represents what a postwork run did
type SyncResult struct {
	DryRun  bool          `json:"dryrun"`
	Files   []ResultFile  `json:"files"`
	Errors  []ErrorFile   `json:"errors"`
	Summary ResultSummary `json:"summary"`
}

type ResultFile struct {
	Action string `json:"action"` // "linked", "replaced", "present", "skipped"
	Here   string `json:"here"`
	Source string `json:"source"`
	Target string `json:"target,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type ErrorFile struct {
	Action string `json:"action"` // "load", "there", "walk", "hash", "link"
	Here   string `json:"here"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
	Error  string `json:"error"`
}

type ResultSummary struct {
	Linked      int   `json:"linked"`
	Replaced    int   `json:"replaced"`
	Present     int   `json:"present"`
	Skipped     int   `json:"skipped"`
	Failed      int   `json:"failed"`
	BytesLinked int64 `json:"bytes_linked"`
}

func buildSyncResult(result *postwork.Result) SyncResult {
	syncResult := SyncResult{
		DryRun: dryRun,
		Files:  []ResultFile{},
		Errors: []ErrorFile{},
		Summary: ResultSummary{
			Linked:      result.Summary.Linked,
			Replaced:    result.Summary.Replaced,
			Present:     result.Summary.Present,
			Skipped:     result.Summary.Skipped,
			Failed:      result.Summary.Failed,
			BytesLinked: result.Summary.BytesLinked,
		},
	}

	for _, root := range result.Roots {
		if root.Err != nil {
			syncResult.Errors = append(syncResult.Errors, ErrorFile{
				Action: "load",
				Here:   root.Here,
				Error:  root.Err.Error(),
			})
			syncResult.Summary.Failed++
			continue
		}
		for _, f := range root.Files {
			if f.Action == postwork.ActionError {
				errorFile := ErrorFile{
					Action: f.Op,
					Here:   root.Here,
					Source: f.Source,
					Target: f.Target,
					Error:  f.Reason,
				}
				if f.Err != nil {
					errorFile.Error = f.Err.Error()
				}
				syncResult.Errors = append(syncResult.Errors, errorFile)
				continue
			}
			syncResult.Files = append(syncResult.Files, ResultFile{
				Action: getActionName(f.Action),
				Here:   root.Here,
				Source: f.Source,
				Target: f.Target,
				Reason: f.Reason,
			})
		}
	}
	return syncResult
}

func getActionName(action postwork.Action) string {
	switch action {
	case postwork.ActionLink:
		return "linked"
	case postwork.ActionReplace:
		return "replaced"
	case postwork.ActionPresent:
		return "present"
	case postwork.ActionSkip:
		return "skipped"
	default:
		return "unknown"
	}
}

func writeSyncResult(path string, result SyncResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}
