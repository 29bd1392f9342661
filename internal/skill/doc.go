// Package skill handles voice commands addressed to Spotify.
//
// A [Skill] scores each intent, resolves its action and parameters, and hands the resulting
// [Command] to an [Executor], which talks to the Spotify client and the device registry. The
// outcome picks the response template: the action's own on success, or one of the error templates
// on failure. One worker goroutine processes commands in arrival order.
package skill
