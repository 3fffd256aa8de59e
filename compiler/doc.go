/*

Process of compilation

Jack Source (.jack) ->
	lex ->
Tokens ->
	front (parse and generate, symtab) ->
VM Code (.vm) ->
	vm.Parse ->
VM Instructions ->
	back ->
Assembly Text (.asm)

Assembly Text ->
	asm.Parse ->
Assembly Lines ->
	emu ->
Machine State

*/
package compiler
