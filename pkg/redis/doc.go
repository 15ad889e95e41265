// Package redis connects to Redis with go-redis/v9 and offers a small
// SET NX based Locker.
//
// Redis is optional for the diary service. When REDIS_URL is set it backs
// webhook event de-duplication and keeps periodic jobs from running on two
// replicas at once; otherwise those concerns stay in-process.
package redis
