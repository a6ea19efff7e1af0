// Package inference implements the rule-based machine state classifier.
//
// The engine keeps its own short rolling window per device and key, separate
// from the charting history in the store, and derives one of
// RUNNING/IDLE/FAULT/UNKNOWN from fault indicators and activity level. Fault
// conditions pre-empt activity scoring. Thresholds and weights are fixed;
// they are the classification contract, not tunables.
package inference
