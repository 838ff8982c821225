// Package redis connects go-redis clients from environment configuration and
// exposes a ping based health check. The distributed seller lock in
// pkg/locker runs on the client returned by Connect.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	lk := locker.NewRedis(client, locker.WithTTL(10*time.Second))
package redis
