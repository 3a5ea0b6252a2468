// Package redis provides the Redis pub/sub message bus used to connect every
// display process on the wall.
package redis
