/*
Package legacy implements the legacy token ledger contract together with its
migration into the factory token issuance authority.

Before the migration the contract is a plain NEP-17 token with allowances.
The committee starts the migration once with StartMigration, which records
the issuance authority, the target factory denomination and the zeroing
policy, removes every allowance and freezes transfers. After that anyone can
call MigrateTokens to move the next page of holders. Every migrated holder
produces an Issue notification that is relayed to the issuance authority
after the transaction is persisted; the ledger does not wait for the mint
and does not roll anything back if it fails.

Holders are migrated in ascending order of their script hashes. The cursor
(the last migrated holder) is stored with the migration state, so every call
continues strictly after the previous page. Each page costs a bounded number
of storage lookups: at most one Find per byte of the cursor plus up to 256
sub-bucket lookups for a level with more than 16 holders to skip.

# Contract notifications

Transfer notification. This is a NEP-17 standard notification. It is also
produced for every zeroed balance during the migration.

	Transfer:
	  - name: from
	    type: Hash160
	  - name: to
	    type: Hash160
	  - name: amount
	    type: Integer

Approval notification. Produced when allowance is changed.

	Approval:
	  - name: owner
	    type: Hash160
	  - name: spender
	    type: Hash160
	  - name: amount
	    type: Integer

MigrationStarted notification. Produced once by StartMigration.

	MigrationStarted:
	  - name: authority
	    type: Hash160
	  - name: denom
	    type: String
	  - name: zeroBalances
	    type: Boolean

Issue notification. An instruction for the issuance authority to mint
amount of denom to the recipient.

	Issue:
	  - name: authority
	    type: Hash160
	  - name: recipient
	    type: Hash160
	  - name: amount
	    type: Integer
	  - name: denom
	    type: String

Migrated notification. Produced after every non-empty batch.

	Migrated:
	  - name: cursor
	    type: Hash160
	  - name: count
	    type: Integer
	  - name: amount
	    type: Integer

# Contract storage scheme

	| Key                           | Value                            |
	|-------------------------------|----------------------------------|
	| 'a' + holder                  | serialized Account               |
	| 'l' + owner + spender         | allowance amount                 |
	| 'p' + spender + owner         | allowance amount (spender index) |
	| "totalSupply"                 | not migrated supply              |
	| "symbol", "decimals"          | token metadata                   |
	| "cursorState"                 | serialized MigrationState        |
*/
package legacy
