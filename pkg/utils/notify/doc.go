// Package notify writes formatted, colored status lines for the provisioning CLI.
//
// This package includes:
//   - [WriteMessage] and the convenience functions ([Errorf], [Warningf], [Activityf],
//     [Successf], [Skippedf], [Infof], [Titlef]) for single status lines
//   - [StepTitlef] for numbered pipeline step headers
//   - [Banner] for the connection summary printed after setup
//   - [StageSeparatingWriter] for automatic blank lines between pipeline steps
//
// Message types include success (✔), error (✗), warning (⚠), info (ℹ), activity (►),
// skipped (↷) and title messages with customizable emojis.
package notify
