// Package filtering decides which contributed components are admitted
// into the extension registry.
//
// Admission is evaluated against three rule sets from the admission
// configuration:
//
//   - Component rules: glob patterns matched against component identifiers
//   - Point rules: glob patterns matched against extension point identifiers
//   - Tag rules: exact strings matched against component tags
//
// Each rule set follows the same precedence:
//
//  1. If exclude rules are specified and match -> exclude (precedence)
//  2. If include rules are specified and match -> include
//  3. If include rules are specified but no match -> exclude
//  4. If only exclude rules specified and no match -> include
//  5. If no rules specified -> include (default behavior)
//
// A component must pass ALL three rule sets (logical AND) to be admitted.
// Every decision carries a human-readable reason so scan logs show why a
// component was kept or dropped.
//
// Patterns are compiled once when the admission rules are built, so the
// per-component check during a bulk scan does not recompile globs. The
// glob syntax supports '*' matching across any characters (including
// dots, which separate identifier segments), '?', and character classes:
//
//   - "org.example.*" matches "org.example.parser", "org.example.ui.menu"
//   - "*.internal" matches "org.example.internal"
//   - "plugin[12]" matches "plugin1", "plugin2"
package filtering
