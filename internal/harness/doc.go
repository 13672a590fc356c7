// Package harness runs YAML scenarios against a real engine.
//
// A scenario feeds messages, button clicks and clock advances into an
// engine built with a fake clock, sequential ids, a fixed random source
// and an in-memory journal. Every message, reaction and journal entry the
// engine produces is captured as a trace, which is checked against the
// scenario's assertions and optionally against a golden file.
//
//	result, err := harness.Run(scenario)
//	if !result.Pass { ... result.Errors ... }
package harness
