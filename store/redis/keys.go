package redis

// Redis key naming conventions for huddle data.
// All keys are prefixed with "huddle:" to avoid collisions.

const keyPrefix = "huddle:"

// jobKey returns the key for a job record: huddle:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// jobIDsKey is the Set tracking all job IDs for enumeration.
const jobIDsKey = keyPrefix + "job_ids"
