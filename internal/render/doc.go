// Package render draws a hydrograph PNG from a cleaned discharge series and
// its summary statistics. Observed points form the main line; imputed points
// are overlaid as dots so a reader can tell filled values from measured ones.
package render
