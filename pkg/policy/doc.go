// Package policy gates content installation with Rego policies.
//
// Before a collection or role is installed, the runtime builds an
// InstallInput describing what is about to be fetched and evaluates it
// against all enabled policies. Built-in policies enforce fully
// qualified naming, refuse unencrypted git and http sources, and can
// restrict installs to an allowlist of galaxy servers. Additional
// policies can be registered from .rego files.
//
// A violation with severity error or critical blocks the install;
// warning and info violations are reported but do not block.
package policy
