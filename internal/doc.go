// Package internal contains the core implementation packages for tabcanvas.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - site: loading and validating the authored site file
//   - tabs: the tab widget controller, keyboard model and markup
//   - renderer: per content type rendering into sanitized fragments
//   - deferred: lazy embeds, feeds and the landing journey reveal
//   - stabilizer: sizing foreign widgets that resize themselves late
//   - diagram: flowchart source to SVG, rendered once a panel is visible
//   - canvas: the live page tying the above to one HTML tree
//   - server: HTTP and WebSocket preview with live reload
//   - watcher: file system monitoring with debouncing
//   - config, logging, errors, validation, security: shared plumbing
//
// # Concurrency
//
// A page owns its HTML tree. Every mutation, including timer callbacks
// scheduled through schedule.Locked, runs under the page mutex, so content
// units never touch the tree concurrently.
//
// # Security Considerations
//
//   - Authored markup passes a bluemonday policy before it reaches the tree
//   - Embed URLs must match the allow-list of trusted domains
//   - The preview server sets a per-request CSP whose frame-src follows
//     the same allow-list
//   - WebSocket upgrades are origin checked and rate limited
package internal
