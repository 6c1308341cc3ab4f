/*
Package s3 stores jailstore slots as objects in an AWS S3 bucket.

Each slot is one object at Config.Prefix + slot. Reads use GetObject; writes
go through the CargoShip transporter when acceleration is enabled and fall
back to a plain PutObject when it fails.

# Error mapping

	NoSuchKey / NotFound                  storage.ErrSlotNotFound
	EntityTooLarge / QuotaExceeded        storage.ErrQuotaExceeded
	object larger than MaxObjectSize      storage.ErrQuotaExceeded

Anything else is wrapped with the failing operation and key.

# Usage

	store, err := s3.New(ctx, s3.Config{
		Bucket: "my-bucket",
		Prefix: "jailstore/",
		Region: "us-west-2",
	}, logger)
	if err != nil {
		return err
	}
	defer store.Close()

S3-compatible services are reached with Endpoint and ForcePathStyle.
*/
package s3
