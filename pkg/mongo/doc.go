// Package mongo wraps the official v2 driver with environment-driven
// configuration, a retrying Connect, a ping based Healthcheck and a session
// transaction helper.
//
//	db, err := mongo.ConnectDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer db.Client().Disconnect(context.Background())
//
//	err = mongo.WithTransaction(ctx, db.Client(), func(ctx context.Context) error {
//		_, err := db.Collection("sellers").UpdateOne(ctx, filter, update)
//		return err
//	})
//
// Errors are joined with the package sentinels and can be matched with errors.Is.
package mongo
