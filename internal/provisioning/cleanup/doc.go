// Package cleanup removes an installation.
//
// The default cleanup only uninstalls the release. A complete cleanup also
// deletes the release's persistent volume claims, the secrets the installer
// created for it and finally the namespace, then waits until the namespace
// is gone. Objects the installer did not label are never touched.
package cleanup
