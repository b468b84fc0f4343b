// Package traversal walks the dependency graph of a root project.
//
// Starting from the root manifest and from every repository already checked out
// under the checkout root, the Orchestrator synchronizes each declared project once,
// follows the manifests of the repositories it synchronizes breadth-first and finally
// installs the requirement files it collected when the installed environment may be
// out of date.
package traversal
