// Package checkpoint persists which jobs of a job list have completed so an
// interrupted run resumes instead of repeating work.
package checkpoint
