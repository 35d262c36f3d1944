// Package partcrawl crawls an appliance parts catalog, discovering appliance
// models and the replacement parts compatible with them, and persists the
// results into a relational store with many-to-many model/part linkage.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, rod/, goquery/).
package partcrawl
