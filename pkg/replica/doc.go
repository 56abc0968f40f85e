/*
The replica package propagates record files between machines through a shared
directory, such as a folder kept in sync by a cloud drive client.

Every machine owns exactly one record file, named after its machine ID. The
exchange protocol is "push own, pull others":

1) Push copies the machine's own record file from its local data directory to
   the shared directory, overwriting whatever is there. The local machine is
   the only writer of its own file, so no timestamps are compared.
2) Pull copies every other machine's record file from the shared directory
   into the local data directory. The machine's own file is never pulled, so
   a stale shared copy can't clobber fresher local state. Peer files that
   can't be parsed (e.g. because the cloud client is still uploading them)
   are skipped until the next exchange.

Because concurrent writers never share a file, no locking is needed. Machines
converge once every peer has pushed and then pulled again.
*/
package replica
