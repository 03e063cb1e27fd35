// Package models defines the persisted entities of the listening history
// pipeline (users, artists, tracks, plays) and the aggregated weekly
// summary handed to report renderers.
//
// All entity state is owned by the relational store; these types are row
// images, not caches. Artists and tracks are intentionally denormalized
// per user (keyed by spotify id + user id) rather than shared across
// tenants, because their metadata is fetched per-user-session.
package models
