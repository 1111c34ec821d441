// Package sequencedef manages sequence definitions: the named, ordered
// email templates that enrollments walk through. It owns validation of
// trigger keys and step ordering; the processor only reads sequences.
package sequencedef
