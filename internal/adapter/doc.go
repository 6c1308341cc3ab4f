/*
Package adapter turns a configuration into a ready-to-use jailed Store.

The store URI selects the backend:

	memory://<name>          in-process tree, shared by every Open with the same name
	file:///<host dir>       host filesystem rooted at <host dir>
	badger://<slot>          tree persisted into one slot of an embedded badger database
	s3://<bucket>/<slot>     tree persisted into one S3 object

Any other scheme fails with UNSUPPORTED_URI. Empty slots fall back to
slots.slot from the configuration.

For memory:// stores with slots.quota_bytes set, the tree is persisted into
a process-wide in-memory slot store that enforces the quota, so writes that
would grow the serialized tree past the limit fail with QUOTA_EXCEEDED.

For file:// stores, the configured jail is taken relative to the host
directory: file:///srv/site with jail /public confines every path to
/srv/site/public. Read-only mode is only available for file:// stores.

# Lifecycle

	a, err := adapter.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	st := a.Store()
	if err := st.Write(ctx, "index.html", page, types.WriteOptions{Recursive: true}); err != nil {
		return err
	}

Open creates the jail directory when it is missing. Loading a remote slot
is retried with the retry section of the configuration; operations on the
resulting Store are never retried. When monitoring.metrics.enabled is set
the backend is instrumented and StartMetrics serves the endpoint.

Close releases badger databases and S3 clients. Memory engines and memory
slot stores live for the whole process.
*/
package adapter
