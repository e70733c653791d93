// Package internaldefs is the shared name table for the metric exporters.
package internaldefs
