/*
Package types defines the storage contract shared by every jailstore backend.

A backend is any value implementing Backend: the in-memory engine
(internal/memfs), the host filesystem adapter (internal/hostfs) and the
slot-persisted engine (internal/blobfs). Callers normally reach a backend
through pkg/store, which binds it to a StorageContext.

# Storage context

A StorageContext is an immutable {URI, Jail, Pwd} triple. Jail is the absolute
boundary no resolved path may leave; Pwd is the working directory relative
paths are resolved against. Both are normalized by NewStorageContext and Pwd
is always contained in Jail:

	sc, err := types.NewStorageContext("memory://default", "/srv/jail", "home")
	// sc.Pwd == "/srv/jail/home"
	sc.Resolve("../../etc/passwd") // "/srv/jail/etc/passwd"
	sc.Child("docs").Pwd            // "/srv/jail/home/docs"

Every backend routes every path argument through StorageContext.Resolve
before touching its state.

# Failure codes

Backends return *errors.StoreError values. The codes are part of the
contract and identical across backends:

	Read     absent or directory               FILE_NOT_FOUND
	Write    target is a directory             PATH_NOT_FOUND
	         parent missing or not a directory PATH_UNAVAILABLE
	Readdir  absent                            PATH_NOT_FOUND
	         target is a file                  NOT_A_DIR
	Mkdir    target is a file                  FILE_EXISTS
	         ancestor missing or a file        PATH_UNAVAILABLE
	Rm       directory without Recursive       DIR_EXISTS
	         the root directory                PATH_UNAVAILABLE
	Rmdir    target is a file                  PATH_NOT_FOUND
	         non-empty without Recursive       DIR_EXISTS
	Stats    absent                            PATH_NOT_FOUND
	Utimes   absent                            PATH_NOT_FOUND

Mkdir on an existing directory, Rm and Rmdir on an absent path all succeed.

# Listing

Readdir returns names sorted with paths.CompareNames. With Recursive set it
returns every descendant as a path relative to the listed directory, in
depth-first pre-order. With Absolute set every entry is the fully resolved
path instead.
*/
package types
