// Package redirect installs and removes the kernel state that forces the
// traffic of a single process through a local proxy port.
//
// A Strategy turns a Key into an ordered list of reversible Steps. A Backend
// applies that list transactionally and reverts it in reverse order, and a
// Guard ties one such list to the lifetime of one controlled process.
package redirect
