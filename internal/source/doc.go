// Package source retrieves the raw league dataset from TheSportsDB.
//
// The document is kept untyped here: the fetch stage only needs to know it is
// valid JSON before persisting it. Shaping into rows happens in the load stage.
package source
