// Package preflight provides readiness checks for the Plex server and the
// filesystem paths posterhelper depends on.
//
// These checks run in two contexts:
//   - Batch commands (run, bulk) call RunAll before any URL is fetched. A
//     failing check aborts the batch with a configuration error so no page
//     loads are spent on a run that cannot upload.
//   - The CLI "config validate --check" command prints every result.
package preflight
