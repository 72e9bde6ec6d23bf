/*
Package issuer implements the factory token issuance authority contract.

The contract manages a set of "factory/..." denominations. Whitelisted
minters issue tokens of those denominations, holders burn or send their own
tokens and the manager can burn or move any holder's tokens, edit the whitelist and
the denomination set.

# Contract notifications

	Mint:
	  - name: to
	    type: Hash160
	  - name: denom
	    type: String
	  - name: amount
	    type: Integer

	Burn:
	  - name: from
	    type: Hash160
	  - name: denom
	    type: String
	  - name: amount
	    type: Integer

	Transfer:
	  - name: from
	    type: Hash160
	  - name: to
	    type: Hash160
	  - name: denom
	    type: String
	  - name: amount
	    type: Integer

	ForceTransfer:
	  - name: from
	    type: Hash160
	  - name: to
	    type: Hash160
	  - name: denom
	    type: String
	  - name: amount
	    type: Integer

# Contract storage scheme

	| Key                   | Value              |
	|-----------------------|--------------------|
	| "manager"             | manager hash       |
	| 'w' + minter          | whitelist mark     |
	| 'd' + denom           | managed denom mark |
	| 'b' + holder + denom  | balance            |
	| 's' + denom           | issued supply      |
*/
package issuer
