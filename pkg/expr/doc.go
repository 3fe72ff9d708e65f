/*
Package expr implements the formula language used throughout arbor models.

Every probability, cost, reward, termination condition and variable update in
a model is an expression string. The package parses those strings into a small
AST and evaluates them against an Env, which resolves named Parameters,
Variables and Tables.

# Evaluation modes

Evaluate takes a finalize flag:

  - finalize=false is a side-effect-free pass. Distribution functions yield
    their mean and no random stream is advanced. The validator and the
    scenario override parser use this mode.
  - finalize=true commits a concrete draw for every stochastic term, reading
    from the Env's random streams.

# Grammar

From lowest to highest precedence:

	||
	&&
	==  !=  <  <=  >  >=
	+  -
	*  /
	unary -  !
	^                (right associative)
	f(a, b)  tbl[x, col]  (a)  literals  identifiers

Numbers, 'single' or "double" quoted strings, true and false are literals.
*/
package expr
